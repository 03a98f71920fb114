package genai

import (
	"fmt"
	"strings"
)

// KeyColorHex is the solid backdrop generated artwork must sit on so the
// chroma keyer can drop it afterwards.
const KeyColorHex = "#FF00FF"

// ArtworkRequest describes one artwork generation or edit.
type ArtworkRequest struct {
	Prompt  string
	Locale  string
	Editing bool
}

// BuildArtworkPrompt turns a chat request into an instruction for garment
// artwork: a single isolated design on a flat key-color background.
func BuildArtworkPrompt(req ArtworkRequest) string {
	var lines []string

	subject := strings.TrimSpace(req.Prompt)
	if subject == "" {
		subject = "a bold graphic emblem"
	}
	if req.Editing {
		lines = append(lines,
			"Edit the attached apparel artwork.",
			fmt.Sprintf("Requested change: %s.", subject),
			"Keep every part of the design the request does not mention.")
	} else {
		lines = append(lines, fmt.Sprintf("Create print-ready artwork for a t-shirt: %s.", subject))
	}

	lines = append(lines,
		"Draw one centered, self-contained design with crisp edges and no mockup, garment, model or scenery.",
		fmt.Sprintf("The background must be a perfectly flat, solid pure magenta (%s) with no gradient, shadow, texture or vignette.", KeyColorHex),
		"Do not use magenta or pink anywhere inside the design itself.")

	if locale := strings.TrimSpace(req.Locale); locale != "" {
		lines = append(lines, fmt.Sprintf("Use %s language for any lettering.", strings.ToUpper(locale)))
	}

	return strings.Join(lines, "\n")
}
