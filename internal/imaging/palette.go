// SPDX-License-Identifier: MIT

// Package imaging converts arbitrary source images into the frame's native
// six-color raw pixel format.
package imaging

import "math"

// PaletteColor is one of the six colors the Spectra 6 panel can display.
type PaletteColor struct {
	R, G, B uint8
}

// Palette is the device palette in fixed tie-break order: Black, White,
// Yellow, Red, Blue, Green.
var Palette = [6]PaletteColor{
	{0, 0, 0},       // black
	{255, 255, 255}, // white
	{255, 255, 0},   // yellow
	{255, 0, 0},     // red
	{0, 0, 255},     // blue
	{0, 255, 0},     // green
}

// paletteLinear caches the palette in linear-sRGB space, matching the order
// of Palette.
var paletteLinear [6][3]float64

// srgbToLinearTable maps sRGB byte values to linear light.
var srgbToLinearTable [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgbToLinearTable[i] = srgbToLinear(float64(i) / 255.0)
	}
	for i, c := range Palette {
		paletteLinear[i] = [3]float64{
			srgbToLinearTable[c.R],
			srgbToLinearTable[c.G],
			srgbToLinearTable[c.B],
		}
	}
}

func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// linearOf converts an sRGB channel value in [0,255] (possibly fractional,
// from error diffusion) to linear light.
func linearOf(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 1
	}
	lo := int(v)
	hi := lo + 1
	frac := v - float64(lo)
	if hi > 255 {
		return srgbToLinearTable[255]
	}
	return srgbToLinearTable[lo]*(1-frac) + srgbToLinearTable[hi]*frac
}

// nearestPalette returns the palette index minimizing squared Euclidean
// distance in linear-sRGB. Ties resolve to the lowest index, which is the
// fixed palette order.
func nearestPalette(r, g, b float64) int {
	lr, lg, lb := linearOf(r), linearOf(g), linearOf(b)
	best := 0
	bestDist := math.MaxFloat64
	for i := range paletteLinear {
		dr := lr - paletteLinear[i][0]
		dg := lg - paletteLinear[i][1]
		db := lb - paletteLinear[i][2]
		d := dr*dr + dg*dg + db*db
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// IsPaletteColor reports whether the RGB triple is exactly one of the six
// device colors.
func IsPaletteColor(r, g, b uint8) bool {
	for _, c := range Palette {
		if c.R == r && c.G == g && c.B == b {
			return true
		}
	}
	return false
}
