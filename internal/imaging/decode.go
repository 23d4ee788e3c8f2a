// SPDX-License-Identifier: MIT

package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when the source bytes are not a recognized image.
var ErrDecode = errors.New("imaging: unrecognized image format")

// decode sniffs the format, decodes PNG/JPEG/WEBP via image.Decode and SVG
// via oksvg, applies the EXIF orientation for JPEG, and composites any alpha
// over white.
func decode(src []byte) (*image.RGBA, error) {
	if looksLikeSVG(src) {
		return rasterizeSVG(src)
	}

	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	rgba := flattenOverWhite(img)

	if format == "jpeg" {
		rgba = applyEXIFOrientation(src, rgba)
	}
	return rgba, nil
}

func looksLikeSVG(src []byte) bool {
	head := src
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf")
	return bytes.HasPrefix(trimmed, []byte("<svg")) || bytes.HasPrefix(trimmed, []byte("<?xml"))
}

// rasterizeSVG renders vector sources at a fixed working resolution; the
// zoom-crop stage downstream handles final sizing.
func rasterizeSVG(src []byte) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: svg: %v", ErrDecode, err)
	}

	const maxDim = 1600
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		vw, vh = 1200, 1600
	}
	scale := float64(maxDim) / vh
	if vw > vh {
		scale = float64(maxDim) / vw
	}
	w := int(vw * scale)
	h := int(vh * scale)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: svg has degenerate viewbox", ErrDecode)
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, out, out.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	return out, nil
}

// flattenOverWhite converts to RGBA and composites any transparency over a
// white background, since the panel has no alpha.
func flattenOverWhite(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Over)
	return out
}

// applyEXIFOrientation normalizes camera rotation flags. Unknown or missing
// orientation leaves the image untouched.
func applyEXIFOrientation(src []byte, img *image.RGBA) *image.RGBA {
	meta, err := exif.Decode(bytes.NewReader(src))
	if err != nil {
		return img
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return img
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return img
	}

	switch orientation {
	case 2:
		return flipHorizontal(img)
	case 3:
		return rotate180(img)
	case 4:
		return flipHorizontal(rotate180(img))
	case 5:
		return flipHorizontal(rotate90(img))
	case 6:
		return rotate90(img)
	case 7:
		return flipHorizontal(rotate270(img))
	case 8:
		return rotate270(img)
	}
	return img
}
