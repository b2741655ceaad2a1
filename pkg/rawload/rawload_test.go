package rawload

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/rawload/pkg/demosaic"
	"github.com/abworrall/rawload/pkg/emath"
	"github.com/abworrall/rawload/pkg/rawerr"
	"github.com/abworrall/rawload/pkg/rawfile"
	"github.com/abworrall/rawload/pkg/rawfile/rawfiletest"
)

func manualConfig() Config {
	c := NewConfig()
	c.UseAutoBright = false
	return c
}

func TestDecodeUniformBayer(t *testing.T) {
	data, err := rawfiletest.DNG(rawfiletest.Options{
		Width: 4, Height: 4, BitsPerSample: 8,
		Samples: rawfiletest.Bayer(4, 4, "RGGB", 100, 150, 200),
	})
	require.NoError(t, err)

	out, err := DecodeBytes(data, manualConfig())
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 4, 4, 3}, out.Shape())

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			r, g, b := out.RGB(x, y)
			assert.InDelta(t, 100.0/255, r, 1e-6)
			assert.InDelta(t, 150.0/255, g, 1e-6)
			assert.InDelta(t, 200.0/255, b, 1e-6)
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	w, h := 10, 8
	samples := make([]uint16, w*h)
	for i := range samples {
		samples[i] = uint16((i * 2749) % 65536)
	}
	data, err := rawfiletest.DNG(rawfiletest.Options{Width: w, Height: h, Samples: samples})
	require.NoError(t, err)

	cfg := manualConfig()
	cfg.HighlightMode = "ignore"
	out, err := DecodeBytes(data, cfg)
	require.NoError(t, err)

	f, err := rawfile.Read(data)
	require.NoError(t, err)
	img, err := demosaic.Demosaic(f, demosaic.Options{})
	require.NoError(t, err)

	require.Len(t, out.Pix, len(img.Pix))
	for i := range img.Pix {
		assert.InDelta(t, float64(img.Pix[i])/65535, float64(out.Pix[i]), 1e-6, "%d", i)
	}
}

func TestDecodeDeterministic(t *testing.T) {
	w, h := 12, 10
	samples := make([]uint16, w*h)
	for i := range samples {
		samples[i] = uint16((i * 977) % 4096)
	}
	path, err := rawfiletest.WriteFile(t.TempDir(), "a.dng", rawfiletest.Options{
		Width: w, Height: h, Samples: samples, BitsPerSample: 12, Packed: true,
		AsShotNeutral: []float64{0.5, 1, 0.6},
	})
	require.NoError(t, err)

	for _, mode := range []string{"clip", "blend", "reconstruct"} {
		cfg := NewConfig()
		cfg.HighlightMode = mode
		cfg.Demosaic = "gradient"
		cfg.Develop = "wb"
		cfg.Gamma = "srgb"
		cfg.Workers = 1
		a, err := Decode(path, cfg)
		require.NoError(t, err)

		cfg.Workers = 6
		b, err := Decode(path, cfg)
		require.NoError(t, err)
		assert.Equal(t, a.Pix, b.Pix, mode)
		for _, v := range a.Pix {
			assert.True(t, v >= 0 && v <= 1)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()

	cfg := NewConfig()
	cfg.HighlightMode = "sharpen"
	_, err := Decode(filepath.Join(dir, "does-not-exist.dng"), cfg)
	assert.True(t, errors.Is(err, rawerr.ErrInvalidParameter), "bad mode reported before reading: %v", err)

	cfg = NewConfig()
	cfg.BrightAdjustment = 3.1
	_, err = DecodeBytes(nil, cfg)
	assert.True(t, errors.Is(err, rawerr.ErrInvalidParameter), "%v", err)

	_, err = Decode(filepath.Join(dir, "does-not-exist.dng"), NewConfig())
	assert.True(t, errors.Is(err, rawerr.ErrUnreadableFile), "%v", err)

	_, err = DecodeBytes([]byte("GIF89a...."), NewConfig())
	assert.True(t, errors.Is(err, rawerr.ErrUnsupportedFormat), "%v", err)

	data, err := rawfiletest.DNG(rawfiletest.Options{
		Width: 4, Height: 4, Samples: rawfiletest.Bayer(4, 4, "RGGB", 1, 2, 3), Truncate: 6,
	})
	require.NoError(t, err)
	out, err := DecodeBytes(data, NewConfig())
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, rawerr.ErrCorruptData), "%v", err)
}

func TestDecodeIgnoreIsClampedAtOutput(t *testing.T) {
	data, err := rawfiletest.DNG(rawfiletest.Options{
		Width: 4, Height: 4, BitsPerSample: 8,
		Samples: rawfiletest.Bayer(4, 4, "RGGB", 200, 50, 25),
	})
	require.NoError(t, err)

	cfg := manualConfig()
	cfg.HighlightMode = "ignore"
	cfg.BrightAdjustment = 3.0
	out, err := DecodeBytes(data, cfg)
	require.NoError(t, err)
	r, g, _ := out.RGB(0, 0)
	assert.Equal(t, float32(1.0), r)
	assert.InDelta(t, 150.0/255, g, 1e-6)
}

func TestDecodeDebugArtefacts(t *testing.T) {
	dir := t.TempDir()
	path, err := rawfiletest.WriteFile(dir, "a.dng", rawfiletest.Options{
		Width: 8, Height: 8, Samples: rawfiletest.Bayer(8, 8, "RGGB", 1000, 2000, 3000), Orientation: 6,
	})
	require.NoError(t, err)

	cfg := NewConfig()
	cfg.Verbosity = 2
	cfg.DumpGrids = filepath.Join(dir, "lum.png")
	cfg.HDRFile = filepath.Join(dir, "linear.hdr")
	cfg.Orient = true
	cfg.OutputBPS = 8

	out, err := Decode(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 8, 8, 3}, out.Shape())

	for _, f := range []string{cfg.DumpGrids, cfg.HDRFile} {
		st, err := os.Stat(f)
		require.NoError(t, err, f)
		assert.True(t, st.Size() > 0, f)
	}
}

func TestDumpGridShrinks(t *testing.T) {
	g := emath.NewFloatGrid(64, 16)
	g.Set(10, 10, 1.0)

	filename := filepath.Join(t.TempDir(), "lum.png")
	require.NoError(t, dumpGrid(g, filename, 16))

	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 4, cfg.Height)
}

func TestConfigYaml(t *testing.T) {
	c, err := newConfigFromYaml([]byte("highlight_mode: blend\nbright_adjustment: 1.5\n"))
	require.NoError(t, err)
	assert.Equal(t, "blend", c.HighlightMode)
	assert.Equal(t, 1.5, c.BrightAdjustment)
	assert.True(t, c.UseAutoBright, "default kept")
	assert.Equal(t, "bilinear", c.Demosaic)
	assert.NoError(t, c.Validate())

	again, err := newConfigFromYaml([]byte(c.AsYaml()))
	require.NoError(t, err)
	assert.Equal(t, c, again)

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("use_auto_bright: false\ngamma: bt709\noutput_bps: 8\n"), 0644))
	c, err = LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, c.UseAutoBright)
	assert.Equal(t, "bt709", c.Gamma)
	assert.Equal(t, 8, c.OutputBPS)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("bright_adjustment: [1, 2]\n"), 0644))
	_, err = LoadConfig(path)
	assert.Equal(t, rawerr.InvalidParameter, rawerr.KindOf(err))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"highlight", func(c *Config) { c.HighlightMode = "sharpen" }},
		{"low bright", func(c *Config) { c.BrightAdjustment = 0.05 }},
		{"high bright", func(c *Config) { c.BrightAdjustment = 3.1 }},
		{"demosaic", func(c *Config) { c.Demosaic = "vng" }},
		{"develop", func(c *Config) { c.Develop = "lut" }},
		{"gamma", func(c *Config) { c.Gamma = "pq" }},
		{"bps", func(c *Config) { c.OutputBPS = 10 }},
		{"percentile", func(c *Config) { c.AutoBrightPercentile = -5 }},
	}
	for _, tc := range tests {
		c := NewConfig()
		tc.mod(&c)
		assert.Equal(t, rawerr.InvalidParameter, rawerr.KindOf(c.Validate()), tc.name)
	}

	for _, b := range []float64{0.1, 3.0} {
		c := NewConfig()
		c.BrightAdjustment = b
		assert.NoError(t, c.Validate())
	}
}
