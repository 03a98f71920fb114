// Package imageproc turns raw artwork into print-ready rasters: decoding,
// background removal and normalization to a fixed print size and DPI.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	DefaultTargetWidth  = 3600
	DefaultTargetHeight = 4800
	DefaultTargetDPI    = 300
)

var ErrEmptyImage = errors.New("imageproc: empty image")

type NormalizeOptions struct {
	TargetWidth         int
	TargetHeight        int
	TargetDPI           int
	MaintainAspectRatio bool
}

func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		TargetWidth:         DefaultTargetWidth,
		TargetHeight:        DefaultTargetHeight,
		TargetDPI:           DefaultTargetDPI,
		MaintainAspectRatio: true,
	}
}

func (o NormalizeOptions) withDefaults() NormalizeOptions {
	def := DefaultNormalizeOptions()
	if o.TargetWidth <= 0 {
		o.TargetWidth = def.TargetWidth
	}
	if o.TargetHeight <= 0 {
		o.TargetHeight = def.TargetHeight
	}
	if o.TargetDPI <= 0 {
		o.TargetDPI = def.TargetDPI
	}
	return o
}

type NormalizeResult struct {
	Buffer   []byte
	Width    int
	Height   int
	DPI      int
	HasAlpha bool
}

// Decode reads PNG, JPEG or WebP data.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imageproc: decode: %w", err)
	}
	return img, format, nil
}

// Normalize resizes img to exactly the target size. With
// MaintainAspectRatio the image is fitted inside the target and padded with
// transparency; otherwise it is stretched. The PNG output carries the
// target DPI and an alpha channel.
func Normalize(img image.Image, opts NormalizeOptions) (NormalizeResult, error) {
	if img == nil || img.Bounds().Empty() {
		return NormalizeResult{}, ErrEmptyImage
	}
	opts = opts.withDefaults()

	canvas := resizeToTarget(img, opts)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return NormalizeResult{}, fmt.Errorf("imageproc: encode png: %w", err)
	}
	out, err := WithDPI(buf.Bytes(), opts.TargetDPI)
	if err != nil {
		return NormalizeResult{}, err
	}

	return NormalizeResult{
		Buffer:   out,
		Width:    opts.TargetWidth,
		Height:   opts.TargetHeight,
		DPI:      opts.TargetDPI,
		HasAlpha: true,
	}, nil
}

func resizeToTarget(img image.Image, opts NormalizeOptions) *image.NRGBA {
	b := img.Bounds()
	w, h := opts.TargetWidth, opts.TargetHeight

	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(img)
	}
	if !opts.MaintainAspectRatio {
		return imaging.Resize(img, w, h, imaging.Lanczos)
	}

	ratio := math.Min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	fw := clampDim(int(math.Round(float64(b.Dx())*ratio)), w)
	fh := clampDim(int(math.Round(float64(b.Dy())*ratio)), h)

	fitted := imaging.Resize(img, fw, fh, imaging.Lanczos)
	canvas := imaging.New(w, h, color.NRGBA{})
	return imaging.PasteCenter(canvas, fitted)
}

func clampDim(v, max int) int {
	if v < 1 {
		return 1
	}
	if v > max {
		return max
	}
	return v
}
