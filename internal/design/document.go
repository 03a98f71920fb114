package design

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

const (
	DocumentVersion  = 2
	MaxLayersPerSide = 3
)

// newLayerID is swapped in tests that need stable ids.
var newLayerID = uuid.NewString

// Document is the persisted layered design of one session: up to
// MaxLayersPerSide layers on each garment side.
//
// Every method is pure. The receiver is never mutated and the returned
// document shares no layer slices with it.
type Document struct {
	Version    int
	ActiveSide Side
	Front      []Layer
	Back       []Layer

	extra map[string]json.RawMessage
}

func EmptyDocument() Document {
	return Document{
		Version:    DocumentVersion,
		ActiveSide: SideFront,
		Front:      []Layer{},
		Back:       []Layer{},
	}
}

func (d Document) Layers(side Side) []Layer {
	if side == SideBack {
		return d.Back
	}
	return d.Front
}

func (d Document) LayerCount(side Side) int {
	return len(d.Layers(side))
}

func (d Document) IsEmpty() bool {
	return len(d.Front) == 0 && len(d.Back) == 0
}

func (d Document) HasTextLayers() bool {
	for _, side := range []Side{SideFront, SideBack} {
		for _, l := range d.Layers(side) {
			if l.IsText() {
				return true
			}
		}
	}
	return false
}

// Layer looks a layer up by id on one side.
func (d Document) Layer(side Side, id string) (Layer, bool) {
	for _, l := range d.Layers(side) {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// TopLayer returns the layer with the highest zIndex on side.
func (d Document) TopLayer(side Side) (Layer, bool) {
	sorted := d.SortedLayers(side)
	if len(sorted) == 0 {
		return Layer{}, false
	}
	return sorted[len(sorted)-1], true
}

// SortedLayers returns a copy of side's layers ordered by ascending zIndex.
// Equal zIndex values keep insertion order.
func (d Document) SortedLayers(side Side) []Layer {
	out := copyLayers(d.Layers(side))
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

func (d Document) WithActiveSide(side Side) Document {
	next := d.clone()
	if side.Valid() {
		next.ActiveSide = side
	}
	return next
}

// AddLayer appends an image layer. At capacity the document is returned
// unchanged.
func (d Document) AddLayer(side Side, artifactID string) Document {
	if d.LayerCount(side) >= MaxLayersPerSide {
		return d.clone()
	}
	return d.appendLayer(side, Layer{
		ID:          newLayerID(),
		Kind:        KindImage,
		ArtifactID:  artifactID,
		DesignState: DefaultDesignState(),
	})
}

// AddTextLayer appends a text layer built from the defaults plus overrides.
func (d Document) AddTextLayer(side Side, overrides TextOverrides) Document {
	if d.LayerCount(side) >= MaxLayersPerSide {
		return d.clone()
	}
	props := DefaultTextProps().Merge(overrides)
	return d.appendLayer(side, Layer{
		ID:          newLayerID(),
		Kind:        KindText,
		Text:        &props,
		DesignState: DefaultDesignState(),
	})
}

func (d Document) appendLayer(side Side, l Layer) Document {
	next := d.clone()
	layers := next.Layers(side)
	l.ZIndex = nextZIndex(layers)
	next.setLayers(side, append(layers, l))
	return next
}

func nextZIndex(layers []Layer) int {
	if len(layers) == 0 {
		return 0
	}
	maxZ := layers[0].ZIndex
	for _, l := range layers[1:] {
		if l.ZIndex > maxZ {
			maxZ = l.ZIndex
		}
	}
	return maxZ + 1
}

func (d Document) RemoveLayer(side Side, id string) Document {
	next := d.clone()
	layers := next.Layers(side)
	kept := make([]Layer, 0, len(layers))
	for _, l := range layers {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	next.setLayers(side, kept)
	return next
}

// UpdateLayerDesignState replaces the placement of one layer. Unknown ids
// leave the document unchanged.
func (d Document) UpdateLayerDesignState(side Side, id string, state DesignState) Document {
	return d.updateLayer(side, id, func(l *Layer) {
		l.DesignState = state.Clamp()
	})
}

// ApplyCommandToLayer runs a placement command against one layer.
func (d Document) ApplyCommandToLayer(side Side, id string, cmd Command) Document {
	return d.updateLayer(side, id, func(l *Layer) {
		l.DesignState = ApplyCommand(l.DesignState, cmd)
	})
}

// UpdateTextLayerProps merges overrides into a text layer. Image layers are
// left alone.
func (d Document) UpdateTextLayerProps(side Side, id string, overrides TextOverrides) Document {
	return d.updateLayer(side, id, func(l *Layer) {
		if !l.IsText() {
			return
		}
		base := DefaultTextProps()
		if l.Text != nil {
			base = *l.Text
		}
		merged := base.Merge(overrides)
		l.Text = &merged
	})
}

// AttachArtifact records a freshly produced artifact on side: the first
// image layer without an artifact receives it, otherwise a new layer is
// appended when there is room. Attaching an artifact that is already
// referenced is a no-op, which keeps replays harmless.
func (d Document) AttachArtifact(side Side, artifactID string) Document {
	if artifactID == "" {
		return d.clone()
	}
	for _, s := range []Side{SideFront, SideBack} {
		for _, l := range d.Layers(s) {
			if l.ArtifactID == artifactID {
				return d.clone()
			}
		}
	}
	for _, l := range d.SortedLayers(side) {
		if l.Kind == KindImage && l.ArtifactID == "" {
			return d.updateLayer(side, l.ID, func(target *Layer) {
				target.ArtifactID = artifactID
			})
		}
	}
	return d.AddLayer(side, artifactID)
}

// ReplaceArtifact points every image layer that references from at to
// instead, keeping placement. It reports whether any layer changed.
func (d Document) ReplaceArtifact(from, to string) (Document, bool) {
	next := d.clone()
	if from == "" || to == "" || from == to {
		return next, false
	}
	changed := false
	for _, side := range []Side{SideFront, SideBack} {
		layers := next.Layers(side)
		for i := range layers {
			if layers[i].Kind == KindImage && layers[i].ArtifactID == from {
				layers[i].ArtifactID = to
				changed = true
			}
		}
	}
	return next, changed
}

// FillMissingArtifacts points every image layer without an artifact at
// artifactID. Migrated legacy layers start out that way.
func (d Document) FillMissingArtifacts(artifactID string) (Document, bool) {
	next := d.clone()
	if artifactID == "" {
		return next, false
	}
	changed := false
	for _, side := range []Side{SideFront, SideBack} {
		layers := next.Layers(side)
		for i := range layers {
			if layers[i].Kind == KindImage && layers[i].ArtifactID == "" {
				layers[i].ArtifactID = artifactID
				changed = true
			}
		}
	}
	return next, changed
}

// ArtifactIDs lists every referenced artifact once, front before back, in
// layer order. Empty ids are skipped.
func (d Document) ArtifactIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, side := range []Side{SideFront, SideBack} {
		for _, l := range d.Layers(side) {
			if l.Kind != KindImage || l.ArtifactID == "" {
				continue
			}
			if _, ok := seen[l.ArtifactID]; ok {
				continue
			}
			seen[l.ArtifactID] = struct{}{}
			ids = append(ids, l.ArtifactID)
		}
	}
	return ids
}

func (d Document) updateLayer(side Side, id string, fn func(*Layer)) Document {
	next := d.clone()
	layers := next.Layers(side)
	for i := range layers {
		if layers[i].ID == id {
			fn(&layers[i])
			break
		}
	}
	return next
}

func (d *Document) setLayers(side Side, layers []Layer) {
	if side == SideBack {
		d.Back = layers
		return
	}
	d.Front = layers
}

func (d Document) clone() Document {
	next := d
	next.Front = copyLayers(d.Front)
	next.Back = copyLayers(d.Back)
	return next
}

func copyLayers(in []Layer) []Layer {
	out := make([]Layer, len(in))
	for i, l := range in {
		if l.Text != nil {
			props := *l.Text
			l.Text = &props
		}
		out[i] = l
	}
	return out
}

var documentKeys = map[string]struct{}{
	"version": {}, "activeSide": {}, "front": {}, "back": {},
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.extra)+4)
	for k, v := range d.extra {
		out[k] = v
	}
	front, back := d.Front, d.Back
	if front == nil {
		front = []Layer{}
	}
	if back == nil {
		back = []Layer{}
	}
	out["version"] = d.Version
	out["activeSide"] = d.ActiveSide
	out["front"] = front
	out["back"] = back
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("design: document is not an object")
	}

	decoded := EmptyDocument()
	if err := json.Unmarshal(fields["version"], &decoded.Version); err != nil {
		return fmt.Errorf("design: document version: %w", err)
	}
	if raw, ok := fields["activeSide"]; ok {
		var side Side
		if err := json.Unmarshal(raw, &side); err == nil && side.Valid() {
			decoded.ActiveSide = side
		}
	}
	for key, target := range map[string]*[]Layer{"front": &decoded.Front, "back": &decoded.Back} {
		raw, ok := fields[key]
		if !ok {
			return fmt.Errorf("design: document %s missing", key)
		}
		var layers []Layer
		if err := json.Unmarshal(raw, &layers); err != nil {
			return fmt.Errorf("design: document %s: %w", key, err)
		}
		if layers == nil {
			return fmt.Errorf("design: document %s is not a list", key)
		}
		*target = layers
	}

	for k, v := range fields {
		if _, known := documentKeys[k]; known {
			continue
		}
		if decoded.extra == nil {
			decoded.extra = make(map[string]json.RawMessage)
		}
		decoded.extra[k] = v
	}

	*d = decoded
	return nil
}
