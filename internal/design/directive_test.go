package design

import "testing"

func TestParseDirective(t *testing.T) {
	cases := []struct {
		msg    string
		action Action
		preset Preset
		scale  float64
		rotate float64
	}{
		{msg: "make it bigger and move to the top", action: ActionMove, preset: PresetTop},
		{msg: "Put it in the MIDDLE please", action: ActionCenter, preset: PresetCenter},
		{msg: "center it, then move left", action: ActionCenter, preset: PresetCenter},
		{msg: "bottom right", action: ActionMove, preset: PresetBottom},
		{msg: "shift it to the right", action: ActionMove, preset: PresetRight},
		{msg: "a bit larger", action: ActionScale, scale: 1.2},
		{msg: "smaller", action: ActionScale, scale: 0.8},
		{msg: "bigger but smaller", action: ActionScale, scale: 1.2},
		{msg: "fill the shirt", action: ActionScale, preset: PresetFill},
		{msg: "make it fit", action: ActionScale, preset: PresetFit},
		{msg: "reset", action: ActionReset},
		{msg: "rotate 45", action: ActionRotate, rotate: 45},
		{msg: "rotate by -30 degrees", action: ActionRotate, rotate: -30},
		{msg: "Rotate it", action: ActionRotate, rotate: 90},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			cmd, ok := ParseDirective(tc.msg)
			if !ok {
				t.Fatalf("expected a directive")
			}
			if cmd.Action != tc.action || cmd.Preset != tc.preset {
				t.Fatalf("got action=%q preset=%q", cmd.Action, cmd.Preset)
			}
			if tc.scale != 0 && (cmd.Scale == nil || *cmd.Scale != tc.scale) {
				t.Fatalf("scale = %v want %v", cmd.Scale, tc.scale)
			}
			if tc.rotate != 0 && (cmd.Rotation == nil || *cmd.Rotation != tc.rotate) {
				t.Fatalf("rotation = %v want %v", cmd.Rotation, tc.rotate)
			}
		})
	}
}

func TestParseDirectiveNoMatch(t *testing.T) {
	for _, msg := range []string{"", "   ", "draw a cat riding a bicycle", "a stop sign", "rotated leaves pattern"} {
		if cmd, ok := ParseDirective(msg); ok {
			t.Fatalf("%q: unexpected directive %+v", msg, cmd)
		}
	}
}

func TestDirectiveDrivesGeometry(t *testing.T) {
	cmd, ok := ParseDirective("make it bigger and move to the top")
	if !ok {
		t.Fatal("expected a directive")
	}
	got := ApplyCommand(DefaultDesignState(), cmd)
	if got.Y != 25 || got.X != 50 || got.Scale != 1 {
		t.Fatalf("unexpected state %+v", got)
	}
}
