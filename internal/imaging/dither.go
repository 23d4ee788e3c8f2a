// SPDX-License-Identifier: MIT

package imaging

import (
	"image"
)

// DitherAlgorithm selects the quantization strategy.
type DitherAlgorithm string

const (
	DitherFloydSteinberg DitherAlgorithm = "floyd-steinberg"
	DitherAtkinson       DitherAlgorithm = "atkinson"
	DitherNone           DitherAlgorithm = "none"
)

// ValidDither reports whether the algorithm name is a member of the closed set.
func ValidDither(d DitherAlgorithm) bool {
	switch d {
	case DitherFloydSteinberg, DitherAtkinson, DitherNone:
		return true
	}
	return false
}

// Quantize reduces img to the six-color palette and returns a packed RGB888
// buffer of exactly w*h*3 bytes. Diffusion runs top-to-bottom, each row
// left-to-right, never serpentine; the firmware renders against exactly this
// ordering.
func Quantize(img *image.RGBA, algo DitherAlgorithm) []byte {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// Working buffer in sRGB [0,255] float space; diffusion error accumulates
	// here and is clamped before palette lookup.
	work := make([]float64, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			wo := (y*w + x) * 3
			work[wo] = float64(img.Pix[o])
			work[wo+1] = float64(img.Pix[o+1])
			work[wo+2] = float64(img.Pix[o+2])
		}
	}

	out := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			wo := (y*w + x) * 3
			r := clamp255(work[wo])
			g := clamp255(work[wo+1])
			b := clamp255(work[wo+2])

			idx := nearestPalette(r, g, b)
			c := Palette[idx]
			out[wo] = c.R
			out[wo+1] = c.G
			out[wo+2] = c.B

			if algo == DitherNone {
				continue
			}

			errR := r - float64(c.R)
			errG := g - float64(c.G)
			errB := b - float64(c.B)

			switch algo {
			case DitherFloydSteinberg:
				diffuse(work, w, h, x+1, y, errR, errG, errB, 7.0/16.0)
				diffuse(work, w, h, x-1, y+1, errR, errG, errB, 3.0/16.0)
				diffuse(work, w, h, x, y+1, errR, errG, errB, 5.0/16.0)
				diffuse(work, w, h, x+1, y+1, errR, errG, errB, 1.0/16.0)
			case DitherAtkinson:
				const f = 1.0 / 8.0
				diffuse(work, w, h, x+1, y, errR, errG, errB, f)
				diffuse(work, w, h, x+2, y, errR, errG, errB, f)
				diffuse(work, w, h, x-1, y+1, errR, errG, errB, f)
				diffuse(work, w, h, x, y+1, errR, errG, errB, f)
				diffuse(work, w, h, x+1, y+1, errR, errG, errB, f)
				diffuse(work, w, h, x, y+2, errR, errG, errB, f)
			}
		}
	}
	return out
}

func diffuse(work []float64, w, h, x, y int, errR, errG, errB, weight float64) {
	if x < 0 || x >= w || y < 0 || y >= h {
		return
	}
	o := (y*w + x) * 3
	work[o] += errR * weight
	work[o+1] += errG * weight
	work[o+2] += errB * weight
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
