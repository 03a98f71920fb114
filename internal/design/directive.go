package design

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

const (
	growFactor   = 1.2
	shrinkFactor = 0.8
	// defaultRotateStep is used when a message says "rotate" without an angle.
	defaultRotateStep = 90
)

var (
	wordPattern   = regexp.MustCompile(`[\p{L}\p{N}]+`)
	rotatePattern = regexp.MustCompile(`\brotate\s+(?:by\s+)?(-?\d+(?:\.\d+)?)`)
)

type directiveRule struct {
	words []string
	build func() Command
}

func ptr(v float64) *float64 { return &v }

// directiveRules is evaluated top to bottom; the first rule whose word
// appears in the message wins.
var directiveRules = []directiveRule{
	{words: []string{"center", "middle"}, build: func() Command {
		return Command{Action: ActionCenter, Preset: PresetCenter}
	}},
	{words: []string{"top"}, build: func() Command {
		return Command{Action: ActionMove, Preset: PresetTop}
	}},
	{words: []string{"bottom"}, build: func() Command {
		return Command{Action: ActionMove, Preset: PresetBottom}
	}},
	{words: []string{"left"}, build: func() Command {
		return Command{Action: ActionMove, Preset: PresetLeft}
	}},
	{words: []string{"right"}, build: func() Command {
		return Command{Action: ActionMove, Preset: PresetRight}
	}},
	{words: []string{"bigger", "larger"}, build: func() Command {
		return Command{Action: ActionScale, Scale: ptr(growFactor)}
	}},
	{words: []string{"smaller"}, build: func() Command {
		return Command{Action: ActionScale, Scale: ptr(shrinkFactor)}
	}},
	{words: []string{"fill"}, build: func() Command {
		return Command{Action: ActionScale, Preset: PresetFill}
	}},
	{words: []string{"fit"}, build: func() Command {
		return Command{Action: ActionScale, Preset: PresetFit}
	}},
	{words: []string{"reset"}, build: func() Command {
		return Command{Action: ActionReset}
	}},
}

// ParseDirective maps a free-form chat message onto a placement command.
// It reports false when the message is not a placement request, in which
// case the caller treats it as a content request.
func ParseDirective(message string) (Command, bool) {
	// Casers are stateful, so each call folds with its own.
	folded := cases.Fold().String(strings.TrimSpace(message))
	if folded == "" {
		return Command{}, false
	}

	words := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(folded, -1) {
		words[w] = struct{}{}
	}

	for _, rule := range directiveRules {
		for _, w := range rule.words {
			if _, ok := words[w]; ok {
				return rule.build(), true
			}
		}
	}

	if m := rotatePattern.FindStringSubmatch(folded); m != nil {
		if deg, err := strconv.ParseFloat(m[1], 64); err == nil {
			return Command{Action: ActionRotate, Rotation: ptr(deg)}, true
		}
	}
	if _, ok := words["rotate"]; ok {
		return Command{Action: ActionRotate, Rotation: ptr(defaultRotateStep)}, true
	}
	return Command{}, false
}
