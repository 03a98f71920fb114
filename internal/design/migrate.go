package design

import (
	"bytes"
	"encoding/json"
)

// Format identifies the shape of a stored design document.
type Format int

const (
	FormatUnknown Format = iota
	FormatCurrent
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatCurrent:
		return "current"
	case FormatLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// LegacyLayerID is the id given to the single layer produced from a
// legacy single-placement record.
const LegacyLayerID = "legacy-0"

type legacyRecord struct {
	X               *float64 `json:"x"`
	Y               *float64 `json:"y"`
	Scale           *float64 `json:"scale"`
	Rotation        *float64 `json:"rotation"`
	LockAspectRatio *bool    `json:"lockAspectRatio"`
}

// DetectFormat classifies raw stored JSON without decoding layers.
func DetectFormat(raw []byte) Format {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return FormatUnknown
	}
	if isNumber(fields["version"]) && isArray(fields["front"]) && isArray(fields["back"]) {
		return FormatCurrent
	}
	if isNumber(fields["x"]) && isNumber(fields["y"]) {
		return FormatLegacy
	}
	return FormatUnknown
}

// Migrate turns any stored design JSON into a current Document. It never
// fails: malformed input yields the empty document. Migrate is idempotent,
// so Migrate(encode(Migrate(x))) equals Migrate(x).
func Migrate(raw []byte) Document {
	switch DetectFormat(raw) {
	case FormatCurrent:
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return EmptyDocument()
		}
		return doc
	case FormatLegacy:
		var rec legacyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return EmptyDocument()
		}
		return fromLegacy(rec)
	default:
		return EmptyDocument()
	}
}

func fromLegacy(rec legacyRecord) Document {
	state := DefaultDesignState()
	state.X = *rec.X
	state.Y = *rec.Y
	if rec.Scale != nil {
		state.Scale = *rec.Scale
	}
	if rec.Rotation != nil {
		state.Rotation = *rec.Rotation
	}
	if rec.LockAspectRatio != nil {
		state.LockAspectRatio = *rec.LockAspectRatio
	}

	doc := EmptyDocument()
	doc.Front = []Layer{{
		ID:          LegacyLayerID,
		Kind:        KindImage,
		ArtifactID:  "",
		DesignState: state.Clamp(),
		ZIndex:      0,
	}}
	return doc
}

func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		return false
	}
	var n float64
	return json.Unmarshal(raw, &n) == nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
