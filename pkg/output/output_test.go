package output

import (
	"bytes"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/abworrall/rawload/pkg/demosaic"
	"github.com/abworrall/rawload/pkg/rawerr"
	"github.com/abworrall/rawload/pkg/rawfile"
)

// numbered gives every pixel a distinct red value so moves are visible.
func numbered(w, h int) *demosaic.Image {
	img := demosaic.NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGB(x, y, float32(y*w+x)/100, 0.5, 0.25)
		}
	}
	return img
}

func TestShapeAndClamp(t *testing.T) {
	img := demosaic.NewImage(3, 2)
	img.SetRGB(0, 0, 1.2, -0.1, 0.5)
	src := append([]float32{}, img.Pix...)

	out, err := FromImage(img, Options{})
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 2, 3, 3}, out.Shape())
	assert.Len(t, out.Pix, 2*3*3)

	r, g, b := out.RGB(0, 0)
	assert.Equal(t, float32(1.0), r)
	assert.Equal(t, float32(0), g)
	assert.Equal(t, float32(0.5), b)
	for _, v := range out.Pix {
		assert.True(t, v >= 0 && v <= 1)
	}
	assert.Equal(t, src, img.Pix, "source left alone")
}

func TestGamma(t *testing.T) {
	img := demosaic.NewImage(1, 1)
	img.SetRGB(0, 0, 0, 0.5, 1)

	out, err := FromImage(img, Options{Gamma: GammaSRGB})
	require.NoError(t, err)
	_, g, b := out.RGB(0, 0)
	assert.InDelta(t, 0.7354, g, 1e-3)
	assert.InDelta(t, 1.0, b, 1e-6)

	out, err = FromImage(img, Options{Gamma: GammaBT709})
	require.NoError(t, err)
	_, g, _ = out.RGB(0, 0)
	assert.InDelta(t, 0.7055, g, 1e-3)

	_, err = FromImage(img, Options{Gamma: "log"})
	assert.Equal(t, rawerr.InvalidParameter, rawerr.KindOf(err))
}

func TestQuantize(t *testing.T) {
	img := demosaic.NewImage(1, 1)
	img.SetRGB(0, 0, 0.5, 0.1, 0.999)

	out, err := FromImage(img, Options{BitDepth: 8})
	require.NoError(t, err)
	r, g, b := out.RGB(0, 0)
	assert.InDelta(t, 128.0/255, r, 1e-7)
	assert.InDelta(t, 26.0/255, g, 1e-7)
	assert.InDelta(t, 1.0, b, 1e-7)

	_, err = FromImage(img, Options{BitDepth: 12})
	assert.Equal(t, rawerr.InvalidParameter, rawerr.KindOf(err))
}

func TestOrientation(t *testing.T) {
	w, h := 4, 3
	src := numbered(w, h)
	red := func(img *Image, x, y int) float32 { r, _, _ := img.RGB(x, y); return r }
	at := func(x, y int) float32 { return float32(y*w+x) / 100 }

	// Off by default: dimensions preserved even when the file says rotate.
	src.Meta.Orientation = rawfile.OrientationRotate90
	out, err := FromImage(src, Options{})
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, h, w, 3}, out.Shape())

	out, err = FromImage(src, Options{ApplyOrientation: true})
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, w, h, 3}, out.Shape())
	// Rotated clockwise: the source's bottom-left is now top-left.
	assert.Equal(t, at(0, h-1), red(out, 0, 0))
	assert.Equal(t, at(0, 0), red(out, h-1, 0))

	base, err := FromImage(src, Options{})
	require.NoError(t, err)

	tests := []struct {
		o                rawfile.Orientation
		x, y, wantX, wantY int // source (x,y) lands at (wantX, wantY)
	}{
		{rawfile.OrientationNormal, 1, 2, 1, 2},
		{rawfile.OrientationMirrorH, 0, 0, w - 1, 0},
		{rawfile.OrientationRotate180, 0, 0, w - 1, h - 1},
		{rawfile.OrientationMirrorV, 1, 0, 1, h - 1},
		{rawfile.OrientationTranspose, 3, 1, 1, 3},
		{rawfile.OrientationRotate90, 0, 0, h - 1, 0},
		{rawfile.OrientationTransvers, 0, 0, h - 1, w - 1},
		{rawfile.OrientationRotate270, 0, 0, 0, w - 1},
	}
	for _, tc := range tests {
		o := Orient(base, tc.o)
		assert.Equal(t, at(tc.x, tc.y), red(o, tc.wantX, tc.wantY), "orientation %d", tc.o)
		assert.Equal(t, tc.o.SwapsAxes(), o.Width == h, "orientation %d", tc.o)
	}
}

func TestEncoders(t *testing.T) {
	src := numbered(8, 6)
	out, err := FromImage(src, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, out))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, out.Bounds(), decoded.Bounds())

	buf.Reset()
	require.NoError(t, WriteTIFF(&buf, out))
	decoded, err = tiff.Decode(&buf)
	require.NoError(t, err)
	r, _, _, _ := decoded.At(2, 1).RGBA()
	assert.Equal(t, uint32(to16(out.Pix[(1*8+2)*3])), r)

	buf.Reset()
	require.NoError(t, WriteHDR(&buf, src))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("#?")), "RGBE header")

	thumb := Thumbnail(out, 4)
	assert.Equal(t, 4, thumb.Bounds().Dx())
	assert.Equal(t, 3, thumb.Bounds().Dy())

	ann := Annotate(out, "ISO100")
	assert.Equal(t, out.Bounds().Size(), ann.Bounds().Size())

	dir := t.TempDir()
	for _, name := range []string{"a.png", "a.tiff"} {
		assert.NoError(t, WriteFile(filepath.Join(dir, name), out), name)
	}
	assert.NoError(t, WriteFile(filepath.Join(dir, "a.hdr"), src))
	assert.Error(t, WriteFile(filepath.Join(dir, "a.hdr"), out))
	assert.Error(t, WriteFile(filepath.Join(dir, "a.jpg"), out))
}
