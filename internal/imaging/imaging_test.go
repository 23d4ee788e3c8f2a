// SPDX-License-Identifier: MIT

package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 90, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNearestPaletteExactColors(t *testing.T) {
	for i, c := range Palette {
		got := nearestPalette(float64(c.R), float64(c.G), float64(c.B))
		assert.Equal(t, i, got, "palette color %d must map to itself", i)
	}
}

func TestNearestPaletteExtremes(t *testing.T) {
	assert.Equal(t, 0, nearestPalette(10, 10, 10), "near-black maps to black")
	assert.Equal(t, 1, nearestPalette(250, 250, 250), "near-white maps to white")
	assert.Equal(t, 3, nearestPalette(230, 20, 20), "saturated red maps to red")
}

func TestQuantizeOutputInPalette(t *testing.T) {
	img := gradientRGBA(64, 48)

	for _, algo := range []DitherAlgorithm{DitherFloydSteinberg, DitherAtkinson, DitherNone} {
		out := Quantize(img, algo)
		require.Len(t, out, 64*48*3, "algo %s", algo)
		for i := 0; i < len(out); i += 3 {
			require.True(t, IsPaletteColor(out[i], out[i+1], out[i+2]),
				"algo %s produced non-palette pixel at %d", algo, i/3)
		}
	}
}

func TestQuantizeDeterministic(t *testing.T) {
	img := gradientRGBA(64, 64)
	a := Quantize(img, DitherFloydSteinberg)
	b := Quantize(img, DitherFloydSteinberg)
	assert.Equal(t, a, b)
}

func TestQuantizeDitherDiffersFromNearest(t *testing.T) {
	img := gradientRGBA(64, 64)
	dithered := Quantize(img, DitherFloydSteinberg)
	nearest := Quantize(img, DitherNone)
	assert.NotEqual(t, dithered, nearest, "error diffusion must change a smooth gradient")
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())

	p.Rotation = 45
	require.ErrorIs(t, p.Validate(), ErrInvalidParam)

	p = DefaultParams()
	p.ZoomLevel = 0.5
	require.ErrorIs(t, p.Validate(), ErrInvalidParam)

	p = DefaultParams()
	p.CropX = 120
	require.ErrorIs(t, p.Validate(), ErrInvalidParam)

	p = DefaultParams()
	p.Dither = "ordered"
	require.ErrorIs(t, p.Validate(), ErrInvalidParam)
}

func TestTargetDims(t *testing.T) {
	w, h := TargetDims(0)
	assert.Equal(t, [2]int{BaseWidth, BaseHeight}, [2]int{w, h})

	w, h = TargetDims(90)
	assert.Equal(t, [2]int{BaseHeight, BaseWidth}, [2]int{w, h})

	w, h = TargetDims(180)
	assert.Equal(t, [2]int{BaseWidth, BaseHeight}, [2]int{w, h})

	w, h = TargetDims(270)
	assert.Equal(t, [2]int{BaseHeight, BaseWidth}, [2]int{w, h})
}

func TestDecodeUnknownFormat(t *testing.T) {
	_, err := decode([]byte("definitely not an image"))
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeJPEGAndPNG(t *testing.T) {
	src := gradientRGBA(40, 30)

	img, err := decode(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))
	img, err = decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dy())
}

func TestDecodeSVG(t *testing.T) {
	svg := []byte(`<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" width="100" height="80" viewBox="0 0 100 80">
  <rect x="10" y="10" width="60" height="40" fill="#ff0000"/>
</svg>`)

	img, err := decode(svg)
	require.NoError(t, err)
	// Vector sources rasterize at the fixed working resolution, preserving
	// the viewbox aspect ratio.
	assert.Equal(t, 1600, img.Bounds().Dx())
	assert.Equal(t, 1280, img.Bounds().Dy())
}

func TestRotateDimensions(t *testing.T) {
	img := gradientRGBA(40, 30)

	r := rotateBy(img, 90)
	assert.Equal(t, 30, r.Bounds().Dx())
	assert.Equal(t, 40, r.Bounds().Dy())

	r = rotateBy(img, 180)
	assert.Equal(t, 40, r.Bounds().Dx())

	r = rotateBy(img, 270)
	assert.Equal(t, 30, r.Bounds().Dx())
}

func TestRotate180IsInvolution(t *testing.T) {
	img := gradientRGBA(16, 12)
	twice := rotateBy(rotateBy(img, 180), 180)
	assert.Equal(t, img.Pix, twice.Pix)
}

func TestAutoCropWhitespace(t *testing.T) {
	// A dark square centered in a white field.
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	for y := 30; y < 70; y++ {
		for x := 30; x < 70; x++ {
			img.Set(x, y, color.RGBA{20, 20, 20, 255})
		}
	}

	cropped := autoCropWhitespace(img)
	assert.Equal(t, 40, cropped.Bounds().Dx())
	assert.Equal(t, 40, cropped.Bounds().Dy())

	// An all-white image is left alone rather than cropped to nothing.
	blank := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}
	kept := autoCropWhitespace(blank)
	assert.Equal(t, 50, kept.Bounds().Dx())
}

func TestProcessFullPipeline(t *testing.T) {
	src := encodePNG(t, gradientRGBA(120, 160))

	res, err := Process(src, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, BaseWidth, res.Width)
	assert.Equal(t, BaseHeight, res.Height)
	require.Len(t, res.Pixels, BaseWidth*BaseHeight*3)

	for i := 0; i < len(res.Pixels); i += 3 * 12007 {
		require.True(t, IsPaletteColor(res.Pixels[i], res.Pixels[i+1], res.Pixels[i+2]))
	}

	thumb, err := png.Decode(bytes.NewReader(res.ThumbnailPNG))
	require.NoError(t, err)
	assert.LessOrEqual(t, thumb.Bounds().Dx(), 300)
	assert.LessOrEqual(t, thumb.Bounds().Dy(), 400)
}

func TestProcessDeterministic(t *testing.T) {
	src := encodePNG(t, gradientRGBA(120, 160))
	params := DefaultParams()
	params.CropX = 50
	params.CropY = 50

	a, err := Process(src, params)
	require.NoError(t, err)
	b, err := Process(src, params)
	require.NoError(t, err)
	assert.Equal(t, a.Pixels, b.Pixels)
	assert.Equal(t, a.ThumbnailPNG, b.ThumbnailPNG)
}

func TestProcessRotationSwapsTarget(t *testing.T) {
	src := encodePNG(t, gradientRGBA(160, 120))
	params := DefaultParams()
	params.Rotation = 90

	res, err := Process(src, params)
	require.NoError(t, err)
	assert.Equal(t, BaseHeight, res.Width)
	assert.Equal(t, BaseWidth, res.Height)
	assert.Len(t, res.Pixels, BaseWidth*BaseHeight*3)
}

func TestProcessRejectsBadParams(t *testing.T) {
	src := encodePNG(t, gradientRGBA(20, 20))

	params := DefaultParams()
	params.Rotation = 17
	_, err := Process(src, params)
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(1)
	src := encodePNG(t, gradientRGBA(60, 80))

	res, err := pool.Process(context.Background(), src, DefaultParams())
	require.NoError(t, err)
	assert.Len(t, res.Pixels, BaseWidth*BaseHeight*3)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Process(canceled, src, DefaultParams())
	require.ErrorIs(t, err, context.Canceled)
}
