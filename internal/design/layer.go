package design

import (
	"encoding/json"
	"fmt"
)

type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

func (s Side) Valid() bool {
	return s == SideFront || s == SideBack
}

// ParseSide maps user input onto a side, defaulting to front.
func ParseSide(v string) (Side, bool) {
	switch Side(v) {
	case SideFront:
		return SideFront, true
	case SideBack:
		return SideBack, true
	}
	return SideFront, false
}

type LayerKind string

const (
	KindImage LayerKind = "image"
	KindText  LayerKind = "text"
)

const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"

	WeightNormal = "normal"
	WeightBold   = "bold"
	StyleNormal  = "normal"
	StyleItalic  = "italic"
)

// TextProps carries the typography of a text layer.
type TextProps struct {
	Text          string  `json:"text"`
	FontFamily    string  `json:"fontFamily"`
	FontSize      float64 `json:"fontSize"`
	FontColor     string  `json:"fontColor"`
	FontWeight    string  `json:"fontWeight"`
	FontStyle     string  `json:"fontStyle"`
	TextAlign     string  `json:"textAlign"`
	LetterSpacing float64 `json:"letterSpacing"`
}

func DefaultTextProps() TextProps {
	return TextProps{
		Text:          "Your text",
		FontFamily:    "Arial",
		FontSize:      defaultFontSize,
		FontColor:     "#000000",
		FontWeight:    WeightNormal,
		FontStyle:     StyleNormal,
		TextAlign:     AlignCenter,
		LetterSpacing: 0,
	}
}

// Typography bounds, in preview pixels. The compositor scales them by the
// print width, so they also bound the size of the rendered text.
const (
	MinFontSize      = 4
	MaxFontSize      = 400
	MaxLetterSpacing = 100
	MinLetterSpacing = -20
	defaultFontSize  = 32
)

// Clamp pulls FontSize and LetterSpacing into their bounds. Non-finite
// values fall back to the defaults.
func (p TextProps) Clamp() TextProps {
	p.FontSize = clampFinite(p.FontSize, MinFontSize, MaxFontSize, defaultFontSize)
	p.LetterSpacing = clampFinite(p.LetterSpacing, MinLetterSpacing, MaxLetterSpacing, 0)
	return p
}

// TextOverrides is a partial TextProps; nil fields keep their current value.
type TextOverrides struct {
	Text          *string  `json:"text,omitempty"`
	FontFamily    *string  `json:"fontFamily,omitempty"`
	FontSize      *float64 `json:"fontSize,omitempty"`
	FontColor     *string  `json:"fontColor,omitempty"`
	FontWeight    *string  `json:"fontWeight,omitempty"`
	FontStyle     *string  `json:"fontStyle,omitempty"`
	TextAlign     *string  `json:"textAlign,omitempty"`
	LetterSpacing *float64 `json:"letterSpacing,omitempty"`
}

func (p TextProps) Merge(o TextOverrides) TextProps {
	if o.Text != nil {
		p.Text = *o.Text
	}
	if o.FontFamily != nil {
		p.FontFamily = *o.FontFamily
	}
	if o.FontSize != nil && *o.FontSize > 0 {
		p.FontSize = *o.FontSize
	}
	if o.FontColor != nil {
		p.FontColor = *o.FontColor
	}
	if o.FontWeight != nil {
		p.FontWeight = *o.FontWeight
	}
	if o.FontStyle != nil {
		p.FontStyle = *o.FontStyle
	}
	if o.TextAlign != nil {
		p.TextAlign = *o.TextAlign
	}
	if o.LetterSpacing != nil {
		p.LetterSpacing = *o.LetterSpacing
	}
	return p.Clamp()
}

// Layer is either an image layer (ArtifactID set, Text nil) or a text layer
// (Text set). Fields the server does not know about survive a decode/encode
// round trip.
type Layer struct {
	ID          string
	Kind        LayerKind
	DesignState DesignState
	ZIndex      int
	ArtifactID  string
	Text        *TextProps

	extra map[string]json.RawMessage
}

func (l Layer) IsText() bool { return l.Kind == KindText }

// Keys each layer kind owns. Anything else, including the other kind's
// keys, is carried through untouched.
var (
	imageLayerKeys = map[string]struct{}{
		"id": {}, "kind": {}, "designState": {}, "zIndex": {}, "artifactId": {},
	}
	textLayerKeys = map[string]struct{}{
		"id": {}, "kind": {}, "designState": {}, "zIndex": {},
		"text": {}, "fontFamily": {}, "fontSize": {}, "fontColor": {}, "fontWeight": {},
		"fontStyle": {}, "textAlign": {}, "letterSpacing": {},
	}
)

func (l Layer) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.extra)+12)
	for k, v := range l.extra {
		out[k] = v
	}
	out["id"] = l.ID
	out["kind"] = l.Kind
	out["designState"] = l.DesignState
	out["zIndex"] = l.ZIndex
	switch l.Kind {
	case KindText:
		props := DefaultTextProps()
		if l.Text != nil {
			props = *l.Text
		}
		out["text"] = props.Text
		out["fontFamily"] = props.FontFamily
		out["fontSize"] = props.FontSize
		out["fontColor"] = props.FontColor
		out["fontWeight"] = props.FontWeight
		out["fontStyle"] = props.FontStyle
		out["textAlign"] = props.TextAlign
		out["letterSpacing"] = props.LetterSpacing
	default:
		out["artifactId"] = l.ArtifactID
	}
	return json.Marshal(out)
}

func (l *Layer) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("design: layer is not an object")
	}

	var decoded Layer
	if raw, ok := fields["kind"]; ok {
		if err := json.Unmarshal(raw, &decoded.Kind); err != nil {
			return fmt.Errorf("design: layer kind: %w", err)
		}
	} else if _, hasText := fields["text"]; hasText {
		decoded.Kind = KindText
	} else {
		decoded.Kind = KindImage
	}
	if decoded.Kind != KindImage && decoded.Kind != KindText {
		return fmt.Errorf("design: unknown layer kind %q", decoded.Kind)
	}

	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &decoded.ID); err != nil {
			return fmt.Errorf("design: layer id: %w", err)
		}
	}
	decoded.DesignState = DefaultDesignState()
	if raw, ok := fields["designState"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &decoded.DesignState); err != nil {
			return fmt.Errorf("design: layer designState: %w", err)
		}
	}
	if raw, ok := fields["zIndex"]; ok {
		if err := json.Unmarshal(raw, &decoded.ZIndex); err != nil {
			return fmt.Errorf("design: layer zIndex: %w", err)
		}
	}

	if decoded.Kind == KindText {
		props := DefaultTextProps()
		// TextProps carries the same json keys as the flattened layer.
		if err := json.Unmarshal(data, &props); err != nil {
			return fmt.Errorf("design: text layer: %w", err)
		}
		props = props.Clamp()
		decoded.Text = &props
	} else if raw, ok := fields["artifactId"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &decoded.ArtifactID); err != nil {
			return fmt.Errorf("design: layer artifactId: %w", err)
		}
	}

	known := imageLayerKeys
	if decoded.Kind == KindText {
		known = textLayerKeys
	}
	for k, v := range fields {
		if _, ok := known[k]; ok {
			continue
		}
		if decoded.extra == nil {
			decoded.extra = make(map[string]json.RawMessage)
		}
		decoded.extra[k] = v
	}

	*l = decoded
	return nil
}
