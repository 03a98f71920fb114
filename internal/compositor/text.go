package compositor

import (
	"errors"
	"image"
	"image/color"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"

	"tailor/internal/design"
)

const (
	// PreviewReferenceWidth is the width in px of the interactive preview
	// that text sizes are authored against.
	PreviewReferenceWidth = 400.0

	// alignNudge shifts left/right aligned text by this share of the print
	// width, matching the preview's text box.
	alignNudge = 0.3

	textPadding = 4

	// A text canvas may exceed the print area by this factor per axis
	// before the layer is refused.
	maxTextOverscan = 4
)

var errTextTooLarge = errors.New("text block exceeds the print area")

type textLine struct {
	text  string
	width float64
}

func (c *Compositor) drawText(dst *image.RGBA, layer design.Layer, area design.PrintArea) error {
	props := design.DefaultTextProps()
	if layer.Text != nil {
		props = *layer.Text
	}
	if strings.TrimSpace(props.Text) == "" {
		return nil
	}
	if c.Fonts == nil {
		return errors.New("no font book configured")
	}

	ratio := float64(area.Width) / PreviewReferenceWidth
	size := props.FontSize * ratio
	if !(size > 0) || math.IsInf(size, 0) {
		return errors.New("font size must be positive")
	}
	face, err := c.Fonts.Face(props.FontFamily, props.FontWeight, props.FontStyle, size)
	if err != nil {
		return err
	}
	spacing := props.LetterSpacing * ratio
	col := gg.Hex(props.FontColor).Color()

	metrics := face.Metrics()
	lineHeight := metrics.LineHeight()
	if lineHeight <= 0 {
		lineHeight = size * 1.2
	}

	raw := strings.Split(strings.ReplaceAll(props.Text, "\r\n", "\n"), "\n")
	lines := make([]textLine, len(raw))
	maxWidth := 0.0
	for i, s := range raw {
		lines[i] = textLine{text: s, width: measureLine(face, s, spacing)}
		maxWidth = math.Max(maxWidth, lines[i].width)
	}

	nudge := alignNudge * float64(area.Width)
	halfW := nudge + maxWidth + textPadding
	blockH := float64(len(lines)) * lineHeight
	halfH := blockH/2 + textPadding

	cw, ch := math.Ceil(2*halfW), math.Ceil(2*halfH)
	if !(cw > 0 && ch > 0) || cw > maxTextOverscan*float64(area.Width) || ch > maxTextOverscan*float64(area.Height) {
		return errTextTooLarge
	}
	canvas := image.NewRGBA(image.Rect(0, 0, int(cw), int(ch)))
	originX, originY := halfW, halfH

	for i, line := range lines {
		if line.text == "" {
			continue
		}
		var startX float64
		switch props.TextAlign {
		case design.AlignLeft:
			startX = -nudge
		case design.AlignRight:
			startX = nudge - line.width
		default:
			startX = -line.width / 2
		}
		centerY := -blockH/2 + lineHeight/2 + float64(i)*lineHeight
		baseline := centerY + (metrics.Ascent-metrics.Descent)/2
		drawLine(canvas, face, line.text, originX+startX, originY+baseline, spacing, col)
	}

	state := layer.DesignState.Clamp()
	paint(dst, canvas, state, area, state.Scale, state.Scale)
	return nil
}

// measureLine returns the advance of s with spacing added after every
// glyph except the last.
func measureLine(face text.Face, s string, spacing float64) float64 {
	if s == "" {
		return 0
	}
	w := face.Advance(s)
	if spacing != 0 {
		w += spacing * float64(utf8.RuneCountInString(s)-1)
	}
	return w
}

func drawLine(dst *image.RGBA, face text.Face, s string, x, y, spacing float64, col color.Color) {
	if spacing == 0 {
		text.Draw(dst, s, face, x, y, col)
		return
	}
	for _, r := range s {
		glyph := string(r)
		text.Draw(dst, glyph, face, x, y, col)
		x += face.Advance(glyph) + spacing
	}
}
