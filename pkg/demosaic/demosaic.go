// Package demosaic turns a single-channel CFA mosaic into a full color
// image, interpolating the two missing colors at every photosite.
package demosaic

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/abworrall/rawload/pkg/rawerr"
	"github.com/abworrall/rawload/pkg/rawfile"
)

type Kernel string

const (
	// Bilinear averages the nearest samples of the wanted color. Works for
	// any CFA tile.
	Bilinear Kernel = "bilinear"

	// Gradient is Malvar, He & Cutler's gradient-corrected linear
	// interpolation (ICASSP 2004). Needs a 2x2 Bayer tile.
	Gradient Kernel = "gradient"
)

// ParseKernel maps a config string onto a Kernel; "" means Bilinear.
func ParseKernel(s string) (Kernel, error) {
	switch Kernel(strings.ToLower(s)) {
	case "", Bilinear:
		return Bilinear, nil
	case Gradient:
		return Gradient, nil
	}
	return "", rawerr.Errorf(rawerr.InvalidParameter, "demosaic.ParseKernel", "unknown kernel %q", s)
}

type Options struct {
	Kernel  Kernel
	Workers int // goroutines; 0 means one per CPU
}

// Demosaic interpolates the frame into an Image of the same dimensions.
// Samples beyond the frame edges are mirrored in (without repeating the
// edge sample) and keep the color of the site they were mirrored from.
// The output doesn't depend on the number of workers.
func Demosaic(f *rawfile.RawFrame, opts Options) (*Image, error) {
	op := "demosaic.Demosaic"

	if f == nil {
		return nil, rawerr.Errorf(rawerr.InvalidParameter, op, "nil frame")
	}
	if len(f.Samples) != f.Width*f.Height {
		return nil, rawerr.Errorf(rawerr.CorruptData, op, "%dx%d frame has %d samples", f.Width, f.Height, len(f.Samples))
	}
	if err := f.CFA.Validate(f.Width, f.Height); err != nil {
		return nil, rawerr.Wrap(rawerr.MalformedCFA, op, err)
	}

	kernel, err := ParseKernel(string(opts.Kernel))
	if err != nil {
		return nil, err
	}
	if kernel == Gradient && !f.CFA.IsBayer2x2() {
		return nil, rawerr.Errorf(rawerr.MalformedCFA, op, "gradient kernel needs a 2x2 Bayer tile, not %dx%d %s",
			f.CFA.Width, f.CFA.Height, f.CFA)
	}

	img := &Image{
		Width:      f.Width,
		Height:     f.Height,
		Pix:        make([]float32, f.Width*f.Height*3),
		BlackLevel: f.BlackLevel,
		WhiteLevel: f.WhiteLevel,
		BitDepth:   f.BitDepth,
		Meta:       f.Meta,
	}

	m := mosaic{f: f, max: float64(uint32(1)<<uint(f.BitDepth) - 1)}
	var interp func(x, y int, c rawfile.Channel) float64
	switch kernel {
	case Gradient:
		interp = m.gradient
	default:
		interp = m.bilinear
	}

	ForEachBand(f.Height, opts.Workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < f.Width; x++ {
				site := f.CFA.At(x, y)
				var rgb [3]float32
				for c := rawfile.Red; c <= rawfile.Blue; c++ {
					if c == site {
						rgb[c] = float32(f.At(x, y))
					} else {
						rgb[c] = float32(interp(x, y, c))
					}
				}
				img.SetRGB(x, y, rgb[0], rgb[1], rgb[2])
			}
		}
	})

	return img, nil
}

// ForEachBand splits rows [0,height) into contiguous bands and runs fn on
// each in its own goroutine, returning when all are done.
func ForEachBand(height, workers int, fn func(y0, y1 int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > height {
		workers = height
	}
	if workers <= 1 {
		fn(0, height)
		return
	}

	rows := (height + workers - 1) / workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < height; y0 += rows {
		y1 := y0 + rows
		if y1 > height {
			y1 = height
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}

// mosaic reads the frame with mirrored borders.
type mosaic struct {
	f   *rawfile.RawFrame
	max float64
}

// mirror reflects i into [0,n) without repeating the edge: -1 -> 1,
// n -> n-2. Loops for windows wider than the frame.
func mirror(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

func (m mosaic) site(x, y int) (float64, rawfile.Channel) {
	mx, my := mirror(x, m.f.Width), mirror(y, m.f.Height)
	return float64(m.f.At(mx, my)), m.f.CFA.At(mx, my)
}

func (m mosaic) val(x, y int) float64 {
	v, _ := m.site(x, y)
	return v
}

// bilinear averages the samples of color c in the 3x3 window around
// (x,y), widening the window until it finds one.
func (m mosaic) bilinear(x, y int, c rawfile.Channel) float64 {
	maxR := m.f.CFA.Width
	if m.f.CFA.Height > maxR {
		maxR = m.f.CFA.Height
	}

	for r := 1; r <= maxR; r++ {
		sum, n := 0.0, 0
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if v, col := m.site(x+dx, y+dy); col == c {
					sum += v
					n++
				}
			}
		}
		if n > 0 {
			return sum / float64(n)
		}
	}

	// Validate guarantees every color sits within one tile of any site.
	panic(fmt.Sprintf("demosaic: no %s within %d of (%d,%d)", c, maxR, x, y))
}

// gradient is the Malvar-He-Cutler 5x5 filter set. The result is clamped
// to the range of the wanted color's samples in the same 5x5 window, so
// it never overshoots its neighbours.
func (m mosaic) gradient(x, y int, c rawfile.Channel) float64 {
	v := func(dx, dy int) float64 { return m.val(x+dx, y+dy) }
	site := m.f.CFA.At(x, y)

	center := v(0, 0)
	axial := v(-2, 0) + v(2, 0) + v(0, -2) + v(0, 2)
	var est float64

	switch {
	case c == rawfile.Green:
		// G at R or B
		est = (4*center + 2*(v(-1, 0)+v(1, 0)+v(0, -1)+v(0, 1)) - axial) / 8

	case site == rawfile.Green:
		diag := v(-1, -1) + v(1, -1) + v(-1, 1) + v(1, 1)
		if m.f.CFA.At(x+1, y) == c {
			// c is to the left and right
			est = (5*center + 4*(v(-1, 0)+v(1, 0)) - diag - (v(-2, 0) + v(2, 0)) + 0.5*(v(0, -2)+v(0, 2))) / 8
		} else {
			// c is above and below
			est = (5*center + 4*(v(0, -1)+v(0, 1)) - diag - (v(0, -2) + v(0, 2)) + 0.5*(v(-2, 0)+v(2, 0))) / 8
		}

	default:
		// R at B, or B at R
		diag := v(-1, -1) + v(1, -1) + v(-1, 1) + v(1, 1)
		est = (6*center + 2*diag - 1.5*axial) / 8
	}

	lo, hi := m.max, 0.0
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			if s, col := m.site(x+dx, y+dy); col == c {
				if s < lo {
					lo = s
				}
				if s > hi {
					hi = s
				}
			}
		}
	}
	if est < lo {
		est = lo
	}
	if est > hi {
		est = hi
	}
	return est
}
