package emath

import "math"

// Some functions that only operate on basic types, that are useful

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
// f is assumed to be in the range [0,1]
func GammaExpand_F64(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055*math.Pow(f, 1.0/2.4) - 0.055
}

// GammaExpand_BT709 is the curve LibRaw applies by default (power 1/2.222,
// toe slope 4.5).
func GammaExpand_BT709(f float64) float64 {
	if f < 0.018 {
		return 4.5 * f
	}
	return 1.099*math.Pow(f, 0.45) - 0.099
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Smoothstep is 0 below edge0, 1 above edge1, and a cubic ramp between.
func Smoothstep(edge0, edge1, x float64) float64 {
	t := Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}
