package compositor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"

	"tailor/internal/design"
)

type fontKey struct {
	mono   bool
	bold   bool
	italic bool
}

var fontData = map[fontKey][]byte{
	{false, false, false}: goregular.TTF,
	{false, true, false}:  gobold.TTF,
	{false, false, true}:  goitalic.TTF,
	{false, true, true}:   gobolditalic.TTF,
	{true, false, false}:  gomono.TTF,
	{true, true, false}:   gomonobold.TTF,
	{true, false, true}:   gomonoitalic.TTF,
	{true, true, true}:    gomonobolditalic.TTF,
}

// FontBook maps CSS-ish font descriptions onto the embedded Go fonts.
// Sources are parsed once and shared; faces are cheap per-size views.
type FontBook struct {
	once    sync.Once
	err     error
	sources map[fontKey]*text.FontSource
}

func NewFontBook() *FontBook {
	return &FontBook{}
}

func (b *FontBook) load() {
	b.sources = make(map[fontKey]*text.FontSource, len(fontData))
	for key, data := range fontData {
		src, err := text.NewFontSource(data)
		if err != nil {
			b.err = fmt.Errorf("parse font %+v: %w", key, err)
			return
		}
		b.sources[key] = src
	}
}

// Face returns a face for the given family, weight and style at size px.
func (b *FontBook) Face(family, weight, style string, size float64) (text.Face, error) {
	b.once.Do(b.load)
	if b.err != nil {
		return nil, b.err
	}
	key := fontKey{
		mono:   isMonoFamily(family),
		bold:   isBold(weight),
		italic: strings.EqualFold(style, design.StyleItalic) || strings.EqualFold(style, "oblique"),
	}
	return b.sources[key].Face(size), nil
}

func isMonoFamily(family string) bool {
	f := strings.ToLower(family)
	for _, hint := range []string{"mono", "courier", "consolas", "menlo", "code"} {
		if strings.Contains(f, hint) {
			return true
		}
	}
	return false
}

func isBold(weight string) bool {
	switch strings.ToLower(strings.TrimSpace(weight)) {
	case design.WeightBold, "bolder", "600", "700", "800", "900":
		return true
	}
	return false
}
