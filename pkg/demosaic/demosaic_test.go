package demosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/rawload/pkg/rawerr"
	"github.com/abworrall/rawload/pkg/rawfile"
	"github.com/abworrall/rawload/pkg/rawfile/rawfiletest"
)

func bayerFrame(t *testing.T, w, h int, pattern string, bits int, samples []uint16) *rawfile.RawFrame {
	t.Helper()
	p, err := rawfile.ParseCFAPattern(pattern)
	require.NoError(t, err)
	f, err := rawfile.NewRawFrame(w, h, bits, p, samples)
	require.NoError(t, err)
	return f
}

func TestMirror(t *testing.T) {
	assert.Equal(t, 1, mirror(-1, 5))
	assert.Equal(t, 2, mirror(-2, 5))
	assert.Equal(t, 3, mirror(5, 5))
	assert.Equal(t, 2, mirror(6, 5))
	assert.Equal(t, 0, mirror(0, 5))
	assert.Equal(t, 4, mirror(4, 5))

	// Wider than the frame
	assert.Equal(t, 1, mirror(-3, 2))
	assert.Equal(t, 0, mirror(4, 2))
}

func TestUniformBayerNoOvershoot(t *testing.T) {
	// 4x4 RGGB, 8-bit, R=100 G=150 B=200
	f := bayerFrame(t, 4, 4, "RGGB", 8, rawfiletest.Bayer(4, 4, "RGGB", 100, 150, 200))

	for _, k := range []Kernel{Bilinear, Gradient} {
		img, err := Demosaic(f, Options{Kernel: k})
		require.NoError(t, err, k)
		require.Equal(t, 4, img.Width)
		require.Equal(t, 4, img.Height)
		require.Len(t, img.Pix, 4*4*3)

		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				r, g, b := img.RGB(x, y)
				assert.Equal(t, float32(100), r, "%s (%d,%d)", k, x, y)
				assert.Equal(t, float32(150), g, "%s (%d,%d)", k, x, y)
				assert.Equal(t, float32(200), b, "%s (%d,%d)", k, x, y)
			}
		}
	}
}

func TestBilinearStaysBetweenNeighbours(t *testing.T) {
	// A green gradient; interpolated green must sit inside the range of
	// the real greens around it.
	w, h := 6, 6
	samples := make([]uint16, w*h)
	p, _ := rawfile.ParseCFAPattern("RGGB")
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if p.At(x, y) == rawfile.Green {
				samples[y*w+x] = uint16(10 * (x + y))
			}
		}
	}
	f := bayerFrame(t, w, h, "RGGB", 8, samples)

	img, err := Demosaic(f, Options{})
	require.NoError(t, err)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if p.At(x, y) == rawfile.Green {
				continue
			}
			_, g, _ := img.RGB(x, y)
			lo, hi := float32(255), float32(0)
			for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				v := float32(f.At(mirror(x+d[0], w), mirror(y+d[1], h)))
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			assert.True(t, g >= lo && g <= hi, "(%d,%d) g=%v not in [%v,%v]", x, y, g, lo, hi)
		}
	}
}

func TestGradientNoOvershootOnEdge(t *testing.T) {
	// A hard vertical edge: black on the left, full scale on the right.
	w, h := 8, 8
	samples := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			samples[y*w+x] = 4095
		}
	}
	f := bayerFrame(t, w, h, "GRBG", 12, samples)

	img, err := Demosaic(f, Options{Kernel: Gradient})
	require.NoError(t, err)
	for _, v := range img.Pix {
		assert.True(t, v >= 0 && v <= 4095, "overshoot: %v", v)
	}
}

func TestDeterministicAcrossWorkers(t *testing.T) {
	w, h := 13, 11
	samples := make([]uint16, w*h)
	for i := range samples {
		samples[i] = uint16((i * 7919) % 4096)
	}
	f := bayerFrame(t, w, h, "BGGR", 12, samples)

	for _, k := range []Kernel{Bilinear, Gradient} {
		one, err := Demosaic(f, Options{Kernel: k, Workers: 1})
		require.NoError(t, err)
		for _, n := range []int{2, 3, 7, 64, 0} {
			many, err := Demosaic(f, Options{Kernel: k, Workers: n})
			require.NoError(t, err)
			assert.Equal(t, one.Pix, many.Pix, "%s with %d workers", k, n)
		}
	}
}

func TestNonBayerTile(t *testing.T) {
	// 3x3 tile, 7x5 frame: partial tiles on the right and bottom.
	p := rawfile.CFAPattern{Width: 3, Height: 3, Colors: []rawfile.Channel{
		rawfile.Green, rawfile.Red, rawfile.Green,
		rawfile.Blue, rawfile.Green, rawfile.Blue,
		rawfile.Green, rawfile.Red, rawfile.Green,
	}}
	w, h := 7, 5
	samples := make([]uint16, w*h)
	vals := map[rawfile.Channel]uint16{rawfile.Red: 10, rawfile.Green: 20, rawfile.Blue: 30}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			samples[y*w+x] = vals[p.At(x, y)]
		}
	}
	f, err := rawfile.NewRawFrame(w, h, 8, p, samples)
	require.NoError(t, err)

	img, err := Demosaic(f, Options{Kernel: Bilinear})
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := img.RGB(x, y)
			assert.Equal(t, [3]float32{10, 20, 30}, [3]float32{r, g, b}, "(%d,%d)", x, y)
		}
	}

	_, err = Demosaic(f, Options{Kernel: Gradient})
	assert.Equal(t, rawerr.MalformedCFA, rawerr.KindOf(err))
}

func TestDemosaicErrors(t *testing.T) {
	f := bayerFrame(t, 4, 4, "RGGB", 8, make([]uint16, 16))

	_, err := Demosaic(f, Options{Kernel: "ahd"})
	assert.Equal(t, rawerr.InvalidParameter, rawerr.KindOf(err))

	bad := *f
	bad.Samples = bad.Samples[:10]
	_, err = Demosaic(&bad, Options{})
	assert.Equal(t, rawerr.CorruptData, rawerr.KindOf(err))

	bad = *f
	bad.CFA = rawfile.CFAPattern{Width: 2, Height: 2, Colors: []rawfile.Channel{rawfile.Red, rawfile.Green}}
	_, err = Demosaic(&bad, Options{})
	assert.Equal(t, rawerr.MalformedCFA, rawerr.KindOf(err))

	_, err = Demosaic(nil, Options{})
	assert.Error(t, err)
}

func TestImageInterfaces(t *testing.T) {
	f := bayerFrame(t, 4, 4, "RGGB", 8, rawfiletest.Bayer(4, 4, "RGGB", 51, 102, 255))
	f.BlackLevel = [3]float64{0, 0, 0}
	img, err := Demosaic(f, Options{})
	require.NoError(t, err)

	assert.Equal(t, 16, img.Size())
	assert.Equal(t, 4, img.Bounds().Dx())
	r, g, b, _ := img.HDRAt(2, 2).HDRRGBA()
	assert.InDelta(t, 0.2, r, 1e-9)
	assert.InDelta(t, 0.4, g, 1e-9)
	assert.InDelta(t, 1.0, b, 1e-9)
}
