// Package compositor flattens the layers of one garment side into a single
// transparent raster at print resolution.
package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"tailor/internal/design"
	"tailor/internal/imageproc"
)

var ErrInvalidArea = errors.New("compositor: print area must be positive")

// AssetResolver loads the raster behind an artifact id.
type AssetResolver interface {
	Resolve(ctx context.Context, artifactID string) (image.Image, error)
}

// AssetResolverFunc adapts a function to AssetResolver.
type AssetResolverFunc func(ctx context.Context, artifactID string) (image.Image, error)

func (f AssetResolverFunc) Resolve(ctx context.Context, artifactID string) (image.Image, error) {
	return f(ctx, artifactID)
}

type Compositor struct {
	Resolver AssetResolver
	Fonts    *FontBook
	Logger   zerolog.Logger
}

func New(resolver AssetResolver, logger zerolog.Logger) *Compositor {
	return &Compositor{Resolver: resolver, Fonts: NewFontBook(), Logger: logger}
}

// WithResolver returns a copy of c that loads assets through res.
func (c *Compositor) WithResolver(res AssetResolver) *Compositor {
	next := *c
	next.Resolver = res
	return &next
}

// Composite paints layers in ascending zIndex onto a transparent canvas of
// exactly area.Width x area.Height. A layer whose asset cannot be resolved
// or whose text cannot be rendered is logged and skipped.
func (c *Compositor) Composite(ctx context.Context, layers []design.Layer, area design.PrintArea) (*image.RGBA, error) {
	if area.Width <= 0 || area.Height <= 0 {
		return nil, ErrInvalidArea
	}
	dst := image.NewRGBA(image.Rect(0, 0, area.Width, area.Height))

	ordered := make([]design.Layer, len(layers))
	copy(ordered, layers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ZIndex < ordered[j].ZIndex })

	for _, layer := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.drawLayer(ctx, dst, layer, area); err != nil {
			c.Logger.Warn().
				Err(err).
				Str("layer_id", layer.ID).
				Str("artifact_id", layer.ArtifactID).
				Msg("compositor: skipping layer")
		}
	}
	return dst, nil
}

// drawLayer paints one layer. A panic while rasterizing is turned into an
// error so one bad layer cannot take the caller down.
func (c *Compositor) drawLayer(ctx context.Context, dst *image.RGBA, layer design.Layer, area design.PrintArea) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render layer: %v", r)
		}
	}()
	if layer.IsText() {
		return c.drawText(dst, layer, area)
	}
	return c.drawImage(ctx, dst, layer, area)
}

func (c *Compositor) drawImage(ctx context.Context, dst *image.RGBA, layer design.Layer, area design.PrintArea) error {
	if layer.ArtifactID == "" {
		return errors.New("image layer has no artifact")
	}
	if c.Resolver == nil {
		return errors.New("no asset resolver configured")
	}
	src, err := c.Resolver.Resolve(ctx, layer.ArtifactID)
	if err != nil {
		return fmt.Errorf("resolve artifact: %w", err)
	}
	b := src.Bounds()
	if b.Empty() {
		return imageproc.ErrEmptyImage
	}
	w, h := float64(b.Dx()), float64(b.Dy())
	fitW, fitH := design.FitSize(area, w/h)
	state := layer.DesignState.Clamp()
	paint(dst, src, state, area, fitW/w*state.Scale, fitH/h*state.Scale)
	return nil
}

// paint draws src centered on the layer position: the source is scaled by
// (sx, sy), rotated by the layer rotation, then translated to (x%, y%).
func paint(dst *image.RGBA, src image.Image, state design.DesignState, area design.PrintArea, sx, sy float64) {
	b := src.Bounds()
	rad := state.Rotation * math.Pi / 180
	sin, cos := math.Sincos(rad)

	cx := state.X / 100 * float64(area.Width)
	cy := state.Y / 100 * float64(area.Height)
	srcCX := float64(b.Min.X) + float64(b.Dx())/2
	srcCY := float64(b.Min.Y) + float64(b.Dy())/2

	a, bb := cos*sx, -sin*sy
	d, e := sin*sx, cos*sy
	m := f64.Aff3{
		a, bb, cx - a*srcCX - bb*srcCY,
		d, e, cy - d*srcCX - e*srcCY,
	}
	draw.BiLinear.Transform(dst, m, src, b, draw.Over, nil)
}

// EncodePNG encodes img as PNG and stamps the print DPI.
func EncodePNG(img image.Image, dpi int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("compositor: encode png: %w", err)
	}
	if dpi <= 0 {
		return buf.Bytes(), nil
	}
	return imageproc.WithDPI(buf.Bytes(), dpi)
}
