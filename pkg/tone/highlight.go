package tone

import (
	"github.com/abworrall/rawload/pkg/demosaic"
	"github.com/abworrall/rawload/pkg/emath"
)

func applyHighlights(img *demosaic.Image, mode HighlightMode, neutral emath.Vec3, workers int) {
	if mode == Ignore {
		return
	}

	var fn func(v emath.Vec3) emath.Vec3
	switch mode {
	case Blend:
		fn = func(v emath.Vec3) emath.Vec3 { return blendPixel(v, neutral) }
	case Reconstruct:
		fn = func(v emath.Vec3) emath.Vec3 { return reconstructPixel(v, neutral) }
	default:
		fn = clipPixel
	}

	demosaic.ForEachBand(img.Height, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < img.Width; x++ {
				r, g, b := img.RGB(x, y)
				if r <= 1 && g <= 1 && b <= 1 {
					continue
				}
				out := fn(emath.Vec3{float64(r), float64(g), float64(b)})
				img.SetRGB(x, y, float32(out[0]), float32(out[1]), float32(out[2]))
			}
		}
	})
}

func clipPixel(v emath.Vec3) emath.Vec3 {
	v.CeilingAt(1.0)
	return v
}

// hueScale brings the brightest channel down to 1.0, keeping the ratios
// between channels.
func hueScale(v emath.Vec3) emath.Vec3 {
	m := v.Max()
	if m <= 1.0 {
		return v
	}
	return emath.Vec3{v[0] / m, v[1] / m, v[2] / m}
}

// blendPixel mixes the reconstructed estimate with the plain clip. A
// pixel just over the top is mostly reconstructed; as the brightest
// channel gets further over (1/max falls from 1.0 to 0.9), it ramps
// smoothly towards the clipped (whiter) value.
func blendPixel(v, neutral emath.Vec3) emath.Vec3 {
	m := v.Max()
	if m <= 1.0 {
		return v
	}
	t := emath.Smoothstep(0.9, 1.0, 1.0/m)
	rec, clip := reconstructPixel(v, neutral), clipPixel(v)
	return emath.Vec3{
		t*rec[0] + (1-t)*clip[0],
		t*rec[1] + (1-t)*clip[1],
		t*rec[2] + (1-t)*clip[2],
	}
}

// reconstructPixel rebuilds the clipped (>1.0) channels from the
// unclipped ones. Given the neutral (the channel ratios of something
// grey), the unclipped channels say how bright the pixel is; each clipped
// channel is then at least that brightness times its neutral ratio. The
// rebuilt pixel is scaled back into range keeping its ratios. With no
// unclipped channel to go on, it falls back to clip.
func reconstructPixel(v, neutral emath.Vec3) emath.Vec3 {
	level, found := 0.0, false
	for c := 0; c < 3; c++ {
		if v[c] <= 1.0 && neutral[c] > 0 {
			if l := v[c] / neutral[c]; !found || l > level {
				level, found = l, true
			}
		}
	}
	if !found {
		return clipPixel(v)
	}

	out := v
	for c := 0; c < 3; c++ {
		if v[c] > 1.0 {
			if est := level * neutral[c]; est > out[c] {
				out[c] = est
			}
		}
	}
	return hueScale(out)
}
