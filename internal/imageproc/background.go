package imageproc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// KeyColor is the solid background the generation prompt asks for.
var KeyColor = color.NRGBA{R: 255, G: 0, B: 255, A: 255}

const (
	DefaultKeyTolerance = 80.0
	// transparentAlpha is the alpha below which a pixel counts as background.
	transparentAlpha = 16
)

// Provenance tells the remover where an image came from.
type Provenance string

const (
	ProvenanceGenerated Provenance = "generated"
	ProvenanceUpload    Provenance = "upload"
)

// ChromaKey clears every pixel within Tolerance (RGB Euclidean distance) of
// Key.
type ChromaKey struct {
	Key       color.NRGBA
	Tolerance float64
}

func DefaultChromaKey() ChromaKey {
	return ChromaKey{Key: KeyColor, Tolerance: DefaultKeyTolerance}
}

func (k ChromaKey) Apply(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	tol := k.Tolerance * k.Tolerance
	kr, kg, kb := float64(k.Key.R), float64(k.Key.G), float64(k.Key.B)

	for i := 0; i+3 < len(out.Pix); i += 4 {
		// NRGBA stores straight alpha, so the color channels are untouched
		// by transparency.
		dr := float64(out.Pix[i]) - kr
		dg := float64(out.Pix[i+1]) - kg
		db := float64(out.Pix[i+2]) - kb
		if dr*dr+dg*dg+db*db <= tol {
			out.Pix[i+3] = 0
		}
	}
	return out
}

// HasTransparentBackground samples the four corners and reports true when
// at least three of them are transparent.
func HasTransparentBackground(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return false
	}
	corners := []image.Point{
		{b.Min.X, b.Min.Y},
		{b.Max.X - 1, b.Min.Y},
		{b.Min.X, b.Max.Y - 1},
		{b.Max.X - 1, b.Max.Y - 1},
	}
	seen := 0
	for _, p := range corners {
		c := color.NRGBAModel.Convert(img.At(p.X, p.Y)).(color.NRGBA)
		if c.A < transparentAlpha {
			seen++
		}
	}
	return seen >= 3
}

// Segmenter is a remote foreground-extraction service.
type Segmenter interface {
	Segment(ctx context.Context, data []byte) ([]byte, error)
}

// Remover picks a background removal strategy by provenance: generated
// artwork is chroma keyed, uploads go to the Segmenter when one is
// configured and are passed through otherwise.
type Remover struct {
	Segmenter Segmenter
	Key       ChromaKey
	Logger    zerolog.Logger
}

func NewRemover(seg Segmenter, logger zerolog.Logger) *Remover {
	return &Remover{Segmenter: seg, Key: DefaultChromaKey(), Logger: logger}
}

// RemoveBackground never fails because of the remote service: on any
// segmentation error the image is returned unchanged.
func (r *Remover) RemoveBackground(ctx context.Context, img image.Image, prov Provenance) (image.Image, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	if HasTransparentBackground(img) {
		return img, nil
	}

	switch prov {
	case ProvenanceGenerated:
		return r.Key.Apply(img), nil
	default:
		if r.Segmenter == nil {
			return img, nil
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("imageproc: encode for segmentation: %w", err)
		}
		data, err := r.Segmenter.Segment(ctx, buf.Bytes())
		if err != nil {
			r.Logger.Warn().Err(err).Msg("imageproc: segmentation failed, keeping original")
			return img, nil
		}
		cut, _, err := Decode(data)
		if err != nil {
			r.Logger.Warn().Err(err).Msg("imageproc: segmentation returned undecodable data, keeping original")
			return img, nil
		}
		return cut, nil
	}
}
