package render

import "image/color"

// Blend moves every channel of a towards b by ratio (0..1)
func Blend(a, b color.RGBA, ratio float64) color.RGBA {
	if ratio <= 0 {
		return a
	}
	if ratio >= 1 {
		return b
	}
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*ratio)
	}
	return color.RGBA{
		R: mix(a.R, b.R),
		G: mix(a.G, b.G),
		B: mix(a.B, b.B),
		A: mix(a.A, b.A),
	}
}

// Shade adds delta to red, green and blue clamping to 0..255,
// alpha is kept
func Shade(c color.RGBA, delta int) color.RGBA {
	clamp := func(v uint8) uint8 {
		return uint8(min(max(int(v)+delta, 0), 255))
	}
	return color.RGBA{
		R: clamp(c.R),
		G: clamp(c.G),
		B: clamp(c.B),
		A: c.A,
	}
}

func IsOpaque(c color.RGBA) bool {
	return c.A == 0xff
}
