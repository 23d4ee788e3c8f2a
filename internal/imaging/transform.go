// SPDX-License-Identifier: MIT

package imaging

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// rotate90 rotates clockwise.
func rotate90(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			so := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			do := dst.PixOffset(h-1-y, x)
			copy(dst.Pix[do:do+4], src.Pix[so:so+4])
		}
	}
	return dst
}

func rotate180(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			so := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			do := dst.PixOffset(w-1-x, h-1-y)
			copy(dst.Pix[do:do+4], src.Pix[so:so+4])
		}
	}
	return dst
}

func rotate270(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			so := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			do := dst.PixOffset(y, w-1-x)
			copy(dst.Pix[do:do+4], src.Pix[so:so+4])
		}
	}
	return dst
}

func flipHorizontal(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			so := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			do := dst.PixOffset(w-1-x, y)
			copy(dst.Pix[do:do+4], src.Pix[so:so+4])
		}
	}
	return dst
}

func rotateBy(src *image.RGBA, degrees int) *image.RGBA {
	switch degrees {
	case 90:
		return rotate90(src)
	case 180:
		return rotate180(src)
	case 270:
		return rotate270(src)
	}
	return src
}

// autoCropWhitespace trims outer rows and columns whose pixels are almost all
// near-white. A small margin of non-white pixels (scanner dust, paper grain)
// is tolerated.
func autoCropWhitespace(src *image.RGBA) *image.RGBA {
	const (
		lumThreshold  = 240.0 // >= treated as white
		noiseFraction = 0.01
	)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	rowWhite := func(y int) bool {
		nonWhite := 0
		for x := 0; x < w; x++ {
			if !isWhiteAt(src, b.Min.X+x, b.Min.Y+y, lumThreshold) {
				nonWhite++
			}
		}
		return float64(nonWhite) <= float64(w)*noiseFraction
	}
	colWhite := func(x int) bool {
		nonWhite := 0
		for y := 0; y < h; y++ {
			if !isWhiteAt(src, b.Min.X+x, b.Min.Y+y, lumThreshold) {
				nonWhite++
			}
		}
		return float64(nonWhite) <= float64(h)*noiseFraction
	}

	top, bottom, left, right := 0, h-1, 0, w-1
	for top < bottom && rowWhite(top) {
		top++
	}
	for bottom > top && rowWhite(bottom) {
		bottom--
	}
	for left < right && colWhite(left) {
		left++
	}
	for right > left && colWhite(right) {
		right--
	}

	if top == 0 && left == 0 && bottom == h-1 && right == w-1 {
		return src
	}
	if right-left < 8 || bottom-top < 8 {
		// Nearly-blank source; cropping would destroy it.
		return src
	}

	rect := image.Rect(b.Min.X+left, b.Min.Y+top, b.Min.X+right+1, b.Min.Y+bottom+1)
	return src.SubImage(rect).(*image.RGBA)
}

func isWhiteAt(src *image.RGBA, x, y int, threshold float64) bool {
	o := src.PixOffset(x, y)
	r := float64(src.Pix[o])
	g := float64(src.Pix[o+1])
	bl := float64(src.Pix[o+2])
	lum := 0.299*r + 0.587*g + 0.114*bl
	return lum >= threshold
}

// zoomCrop selects the largest target-aspect sub-rectangle, shrinks it by
// zoom, centers it on the (cropX%, cropY%) anchor clamped to the image, and
// scales the result to exactly (targetW, targetH).
func zoomCrop(src *image.RGBA, cropX, cropY, zoom float64, targetW, targetH int) (*image.RGBA, error) {
	b := src.Bounds()
	sw, sh := float64(b.Dx()), float64(b.Dy())

	targetAspect := float64(targetW) / float64(targetH)
	cropW := sw
	cropH := sw / targetAspect
	if cropH > sh {
		cropH = sh
		cropW = sh * targetAspect
	}
	cropW /= zoom
	cropH /= zoom

	if cropW < 1 || cropH < 1 {
		return nil, ErrDegenerate
	}

	// Anchor maps to the crop center, then the crop is clamped inside the
	// source so extreme anchors pin to the edge instead of sampling past it.
	centerX := sw * cropX / 100.0
	centerY := sh * cropY / 100.0
	x0 := centerX - cropW/2
	y0 := centerY - cropH/2
	x0 = math.Max(0, math.Min(x0, sw-cropW))
	y0 = math.Max(0, math.Min(y0, sh-cropH))

	rect := image.Rect(
		b.Min.X+int(math.Round(x0)),
		b.Min.Y+int(math.Round(y0)),
		b.Min.X+int(math.Round(x0+cropW)),
		b.Min.Y+int(math.Round(y0+cropH)),
	)
	if rect.Dx() < 1 || rect.Dy() < 1 {
		return nil, ErrDegenerate
	}
	cropped := src.SubImage(rect)

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), cropped, rect, xdraw.Src, nil)
	return dst, nil
}

// enhanceContrast applies a gamma correction that pulls the mean luminance
// toward the fixed midpoint. Low-contrast scans benefit; already-balanced
// images move very little.
func enhanceContrast(src *image.RGBA) *image.RGBA {
	const target = 128.0
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			sum += 0.299*float64(src.Pix[o]) + 0.587*float64(src.Pix[o+1]) + 0.114*float64(src.Pix[o+2])
		}
	}
	mean := sum / float64(w*h)
	if mean < 1 || mean > 254 {
		return src
	}

	gamma := math.Log(target/255.0) / math.Log(mean/255.0)
	if math.Abs(gamma-1.0) < 0.01 {
		return src
	}

	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math.Round(255.0 * math.Pow(float64(i)/255.0, gamma)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			so := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			do := dst.PixOffset(x, y)
			dst.Pix[do] = lut[src.Pix[so]]
			dst.Pix[do+1] = lut[src.Pix[so+1]]
			dst.Pix[do+2] = lut[src.Pix[so+2]]
			dst.Pix[do+3] = 255
		}
	}
	return dst
}

// sharpen applies a single-pass unsharp mask with a 3x3 box blur.
func sharpen(src *image.RGBA) *image.RGBA {
	const amount = 0.5
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			do := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				var blur float64
				var n int
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := x+dx, y+dy
						if nx < 0 || nx >= w || ny < 0 || ny >= h {
							continue
						}
						blur += float64(src.Pix[src.PixOffset(b.Min.X+nx, b.Min.Y+ny)+c])
						n++
					}
				}
				blur /= float64(n)
				orig := float64(src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)+c])
				dst.Pix[do+c] = uint8(clamp255(orig + amount*(orig-blur)))
			}
			dst.Pix[do+3] = 255
		}
	}
	return dst
}
