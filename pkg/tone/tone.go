// Package tone turns a demosaiced image in sensor units into scene
// referred values around [0,1]: black/white normalization, optional
// development, auto-brightness, a manual multiplier, then a highlight
// policy for whatever ended up above 1.0.
package tone

import (
	"log"

	"github.com/abworrall/rawload/pkg/demosaic"
	"github.com/abworrall/rawload/pkg/ecolor"
	"github.com/abworrall/rawload/pkg/emath"
	"github.com/abworrall/rawload/pkg/rawerr"
)

// Apply runs the tone pipeline over img, in place. Settings are checked
// up front, so on error the pixels have not been touched.
func Apply(img *demosaic.Image, s Settings) error {
	op := "tone.Apply"

	if err := s.Validate(); err != nil {
		return err
	}
	if img == nil || len(img.Pix) != img.Width*img.Height*3 {
		return rawerr.Errorf(rawerr.InvalidParameter, op, "image buffer does not match its dimensions")
	}
	for c := 0; c < 3; c++ {
		if img.WhiteLevel[c] <= img.BlackLevel[c] {
			return rawerr.Errorf(rawerr.InvalidParameter, op, "channel %d white level %v not above black level %v",
				c, img.WhiteLevel[c], img.BlackLevel[c])
		}
	}
	mode, _ := ParseHighlightMode(string(s.Highlight))
	develop, _ := ParseDevelop(string(s.Develop))

	normalize(img, s.Workers)

	neutral := emath.Vec3{1, 1, 1}
	profile, err := ecolor.NewProfile(img.Meta.ColorMatrix, img.Meta.ForwardMatrix, img.Meta.AsShotNeutral)
	if err != nil {
		log.Printf("tone: ignoring camera color data: %v", err)
		profile = ecolor.Profile{}
	}
	if developed := developImage(img, develop, profile, s.Workers); !developed && profile.HasNeutral {
		// Still camera native, so a neutral highlight has the as-shot ratios.
		n := profile.AsShotNeutral
		neutral = emath.Vec3{n[0] / n[1], 1, n[2] / n[1]}
	}

	if s.AutoBright {
		scale := autoBrightScale(img, s.percentile(), s.Workers, s.LuminanceHook)
		scaleImage(img, scale, s.Workers)
	}

	if s.Brightness != 1.0 {
		scaleImage(img, s.Brightness, s.Workers)
	}

	applyHighlights(img, mode, neutral, s.Workers)
	return nil
}

// normalize maps each channel's [black, white] onto [0,1]; anything
// below black becomes 0. The image's levels become [0,1] to match.
func normalize(img *demosaic.Image, workers int) {
	var black, inv [3]float64
	for c := 0; c < 3; c++ {
		black[c] = img.BlackLevel[c]
		inv[c] = 1.0 / (img.WhiteLevel[c] - img.BlackLevel[c])
	}

	demosaic.ForEachBand(img.Height, workers, func(y0, y1 int) {
		for i := y0 * img.Width * 3; i < y1*img.Width*3; i++ {
			c := i % 3
			v := (float64(img.Pix[i]) - black[c]) * inv[c]
			if v < 0 {
				v = 0
			}
			img.Pix[i] = float32(v)
		}
	})

	img.BlackLevel = [3]float64{0, 0, 0}
	img.WhiteLevel = [3]float64{1, 1, 1}
}

// developImage applies as much of the camera profile as was asked for and
// is available. It returns true if the pixels were white balanced.
func developImage(img *demosaic.Image, d Develop, p ecolor.Profile, workers int) bool {
	if d == DevelopNone {
		return false
	}
	if !p.HasNeutral && !p.HasMatrix {
		log.Printf("tone: develop=%s, but the file has no AsShotNeutral or color matrix; leaving camera native", d)
		return false
	}
	if !p.HasNeutral {
		log.Printf("tone: develop=%s, but the file has no AsShotNeutral; skipping white balance", d)
	}
	if d == DevelopCamera && !p.HasMatrix {
		log.Printf("tone: develop=camera, but the file has no color matrix; white balance only")
	}

	dev := p.WhiteBalance
	if d == DevelopCamera {
		dev = p.DevelopDNG
	}

	demosaic.ForEachBand(img.Height, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < img.Width; x++ {
				r, g, b := img.RGB(x, y)
				out := dev(ecolor.NewCameraNative(float64(r), float64(g), float64(b)))
				img.SetRGB(x, y, float32(out.R), float32(out.G), float32(out.B))
			}
		}
	})

	return p.HasNeutral
}

func scaleImage(img *demosaic.Image, k float64, workers int) {
	demosaic.ForEachBand(img.Height, workers, func(y0, y1 int) {
		for i := y0 * img.Width * 3; i < y1*img.Width*3; i++ {
			img.Pix[i] = float32(float64(img.Pix[i]) * k)
		}
	})
}
