// SPDX-License-Identifier: MIT

package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Base panel dimensions in portrait orientation.
const (
	BaseWidth  = 1200
	BaseHeight = 1600
)

// Thumbnail bounding box.
const (
	thumbMaxWidth  = 300
	thumbMaxHeight = 400
)

var (
	// ErrInvalidParam is returned for parameters outside their closed sets.
	ErrInvalidParam = errors.New("imaging: invalid parameter")
	// ErrDegenerate is returned when crop/zoom produce a zero-area region.
	ErrDegenerate = errors.New("imaging: degenerate crop region")
)

// Params controls a pipeline run.
type Params struct {
	Rotation           int     // 0, 90, 180, 270
	CropX              float64 // percent anchor, 0..100
	CropY              float64 // percent anchor, 0..100
	ZoomLevel          float64 // >= 1.0
	Dither             DitherAlgorithm
	EnhanceContrast    bool
	Sharpen            bool
	AutoCropWhitespace bool
}

// DefaultParams are the settings used when the caller supplies nothing.
func DefaultParams() Params {
	return Params{
		CropX:     50,
		CropY:     50,
		ZoomLevel: 1.0,
		Dither:    DitherFloydSteinberg,
	}
}

// Validate checks all closed sets and ranges.
func (p Params) Validate() error {
	switch p.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("%w: rotation %d not in {0,90,180,270}", ErrInvalidParam, p.Rotation)
	}
	if p.ZoomLevel < 1.0 {
		return fmt.Errorf("%w: zoom level %.2f below 1.0", ErrInvalidParam, p.ZoomLevel)
	}
	if p.CropX < 0 || p.CropX > 100 || p.CropY < 0 || p.CropY > 100 {
		return fmt.Errorf("%w: crop anchor (%.1f,%.1f) outside [0,100]", ErrInvalidParam, p.CropX, p.CropY)
	}
	if !ValidDither(p.Dither) {
		return fmt.Errorf("%w: dither algorithm %q", ErrInvalidParam, p.Dither)
	}
	return nil
}

// TargetDims returns the device buffer dimensions for a rotation.
func TargetDims(rotation int) (w, h int) {
	if rotation == 90 || rotation == 270 {
		return BaseHeight, BaseWidth
	}
	return BaseWidth, BaseHeight
}

// Result is a finished pipeline run.
type Result struct {
	Pixels       []byte // exactly Width*Height*3 bytes, all palette colors
	Width        int
	Height       int
	ThumbnailPNG []byte
}

// Process runs the full pipeline. Identical inputs and params produce
// byte-identical output.
func Process(src []byte, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	if params.AutoCropWhitespace {
		img = autoCropWhitespace(img)
	}

	img = rotateBy(img, params.Rotation)

	targetW, targetH := TargetDims(params.Rotation)

	img, err = zoomCrop(img, params.CropX, params.CropY, params.ZoomLevel, targetW, targetH)
	if err != nil {
		return nil, err
	}

	if params.EnhanceContrast {
		img = enhanceContrast(img)
	}
	if params.Sharpen {
		img = sharpen(img)
	}

	pixels := Quantize(img, params.Dither)

	thumb, err := thumbnailPNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	return &Result{
		Pixels:       pixels,
		Width:        targetW,
		Height:       targetH,
		ThumbnailPNG: thumb,
	}, nil
}

// thumbnailPNG scales the processed (pre-quantization) image into the
// thumbnail bounding box and PNG-encodes it.
func thumbnailPNG(img *image.RGBA) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := float64(thumbMaxWidth) / float64(w)
	if s := float64(thumbMaxHeight) / float64(h); s < scale {
		scale = s
	}
	tw := int(float64(w) * scale)
	th := int(float64(h) * scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
