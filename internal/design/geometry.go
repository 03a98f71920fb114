package design

import (
	"fmt"
	"math"
)

const (
	MinScale = 0.1
	MaxScale = 3.0

	// printFitRatio is the share of the print area an unscaled layer may occupy.
	printFitRatio = 0.8

	fillScaleFactor = 1.5
	fillScaleCap    = 2.0
	fitScaleFactor  = 0.8
	fitScaleFloor   = 0.3
)

// DesignState places one layer on a garment side. X and Y are the layer
// center as a percentage of the print area.
type DesignState struct {
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Scale           float64 `json:"scale"`
	Rotation        float64 `json:"rotation"`
	LockAspectRatio bool    `json:"lockAspectRatio"`
}

func DefaultDesignState() DesignState {
	return DesignState{X: 50, Y: 50, Scale: 1, Rotation: 0, LockAspectRatio: true}
}

// Clamp returns s with every field inside its legal range. Non-finite
// values fall back to the defaults.
func (s DesignState) Clamp() DesignState {
	def := DefaultDesignState()
	s.X = clampFinite(s.X, 0, 100, def.X)
	s.Y = clampFinite(s.Y, 0, 100, def.Y)
	s.Scale = clampFinite(s.Scale, MinScale, MaxScale, def.Scale)
	s.Rotation = normalizeRotation(s.Rotation)
	return s
}

func clampFinite(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return math.Min(math.Max(v, lo), hi)
}

func normalizeRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r == 360 {
		r = 0
	}
	return r
}

type Action string

const (
	ActionMove   Action = "move"
	ActionScale  Action = "scale"
	ActionRotate Action = "rotate"
	ActionReset  Action = "reset"
	ActionCenter Action = "center"
)

type Preset string

const (
	PresetCenter Preset = "center"
	PresetTop    Preset = "top"
	PresetBottom Preset = "bottom"
	PresetLeft   Preset = "left"
	PresetRight  Preset = "right"
	PresetFill   Preset = "fill"
	PresetFit    Preset = "fit"
)

// Command is a placement instruction. Pointer fields are optional; a nil
// coordinate on a move keeps the current value.
type Command struct {
	Action   Action   `json:"action"`
	Preset   Preset   `json:"preset,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Scale    *float64 `json:"scale,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// ApplyCommand applies the preset first and then the action. Unknown presets
// and actions leave the state untouched. The result is always clamped.
func ApplyCommand(state DesignState, cmd Command) DesignState {
	next := state

	switch cmd.Preset {
	case PresetCenter:
		next.X, next.Y = 50, 50
	case PresetTop:
		next.Y = 25
	case PresetBottom:
		next.Y = 75
	case PresetLeft:
		next.X = 30
	case PresetRight:
		next.X = 70
	case PresetFill:
		next.Scale = math.Min(next.Scale*fillScaleFactor, fillScaleCap)
	case PresetFit:
		next.Scale = math.Max(next.Scale*fitScaleFactor, fitScaleFloor)
	}

	switch cmd.Action {
	case ActionMove:
		if cmd.X != nil {
			next.X = *cmd.X
		}
		if cmd.Y != nil {
			next.Y = *cmd.Y
		}
	case ActionScale:
		if cmd.Scale != nil {
			next.Scale *= *cmd.Scale
		}
	case ActionRotate:
		if cmd.Rotation != nil {
			next.Rotation += *cmd.Rotation
		}
	case ActionReset:
		next = DefaultDesignState()
	case ActionCenter:
		next.X, next.Y = 50, 50
	}

	return next.Clamp()
}

// Transform is the preview-space rendering of a DesignState.
type Transform struct {
	TranslateXPercent float64 `json:"translateX"`
	TranslateYPercent float64 `json:"translateY"`
	Scale             float64 `json:"scale"`
	Rotation          float64 `json:"rotation"`
}

func ToTransform(state DesignState) Transform {
	return Transform{
		TranslateXPercent: state.X - 50,
		TranslateYPercent: state.Y - 50,
		Scale:             state.Scale,
		Rotation:          state.Rotation,
	}
}

// CSS renders t in CSS transform syntax for the preview client.
func (t Transform) CSS() string {
	return fmt.Sprintf("translate(%s%%, %s%%) scale(%s) rotate(%sdeg)",
		formatNumber(t.TranslateXPercent),
		formatNumber(t.TranslateYPercent),
		formatNumber(t.Scale),
		formatNumber(t.Rotation))
}

func (t Transform) IsIdentity() bool {
	return t.TranslateXPercent == 0 && t.TranslateYPercent == 0 && t.Scale == 1 && t.Rotation == 0
}

func formatNumber(v float64) string {
	return fmt.Sprintf("%g", v)
}

// PrintArea is a printable region in pixels.
type PrintArea struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	DPI    int `json:"dpi,omitempty"`
}

// Bounds is an axis-aligned rectangle in print pixels, before rotation.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FitSize returns the largest size with the given aspect ratio that fits
// inside 80% of the print area.
func FitSize(area PrintArea, aspect float64) (float64, float64) {
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = 1
	}
	maxW := float64(area.Width) * printFitRatio
	maxH := float64(area.Height) * printFitRatio
	if maxH <= 0 {
		return 0, 0
	}
	if aspect > maxW/maxH {
		return maxW, maxW / aspect
	}
	return maxH * aspect, maxH
}

// ComputeBounds fits a layer of the given aspect ratio into the print area,
// applies the scale and centers the result at (x%, y%).
func ComputeBounds(state DesignState, area PrintArea, aspect float64) Bounds {
	w, h := FitSize(area, aspect)
	w *= state.Scale
	h *= state.Scale
	cx := state.X / 100 * float64(area.Width)
	cy := state.Y / 100 * float64(area.Height)
	return Bounds{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}
}
