package tone

import (
	"log"
	"math"

	"github.com/codahale/hdrhistogram"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/abworrall/rawload/pkg/demosaic"
	"github.com/abworrall/rawload/pkg/emath"
)

// Luminance is recorded into the histogram as a fixed point integer.
const (
	lumScale = 1 << 16
	lumMax   = 1 << 26 // luminance of 1024; anything brighter is recorded as that
)

// Luminance is the Y of the pixel, treating it as linear sRGB.
func Luminance(r, g, b float64) float64 {
	_, y, _ := colorful.LinearRgbToXyz(r, g, b)
	return y
}

// autoBrightScale finds the multiplier that brings the given luminance
// percentile up to 1.0, bounded to [1, MaxAutoBrightScale]. Black pixels
// don't count; an all black image gets 1.0.
func autoBrightScale(img *demosaic.Image, pct float64, workers int, hook func(emath.FloatGrid)) float64 {
	grid := emath.NewFloatGrid(img.Width, img.Height)
	demosaic.ForEachBand(img.Height, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < img.Width; x++ {
				r, g, b := img.RGB(x, y)
				grid.Set(x, y, Luminance(float64(r), float64(g), float64(b)))
			}
		}
	})
	if hook != nil {
		hook(grid)
	}

	h := hdrhistogram.New(1, lumMax, 3)
	for _, lum := range grid.Values() {
		v := int64(math.Round(lum * lumScale))
		if v < 1 {
			continue
		}
		if v > lumMax {
			v = lumMax
		}
		if err := h.RecordValue(v); err != nil {
			log.Printf("tone: auto-bright histogram: %v", err)
		}
	}

	if h.TotalCount() == 0 {
		log.Printf("tone: auto-bright: image is black, leaving it alone")
		return 1.0
	}

	target := float64(h.ValueAtQuantile(pct)) / lumScale
	scale := emath.Clamp(1.0/target, 1.0, MaxAutoBrightScale)
	log.Printf("tone: auto-bright: p%.1f luminance %.4f over %d pixels, scale x%.3f", pct, target, h.TotalCount(), scale)
	return scale
}
