package node

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/rawload/pkg/rawerr"
	"github.com/abworrall/rawload/pkg/rawfile/rawfiletest"
)

func setup(t *testing.T) (*LoadRawImage, DirResolver) {
	r := DirResolver{InputDir: t.TempDir(), OutputDir: t.TempDir()}

	_, err := rawfiletest.WriteFile(r.InputDir, "b.dng", rawfiletest.Options{
		Width: 4, Height: 4, BitsPerSample: 8,
		Samples: rawfiletest.Bayer(4, 4, "RGGB", 100, 150, 200),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(r.InputDir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(r.InputDir, "subdir"), 0755))

	return NewLoadRawImage(r), r
}

func TestResolve(t *testing.T) {
	_, r := setup(t)

	tests := []struct {
		name string
		want string
	}{
		{"b.dng", filepath.Join(r.InputDir, "b.dng")},
		{"b.dng [input]", filepath.Join(r.InputDir, "b.dng")},
		{"b.dng [output]", filepath.Join(r.OutputDir, "b.dng")},
	}
	for _, test := range tests {
		got, err := r.Resolve(test.name)
		require.NoError(t, err, test.name)
		assert.Equal(t, test.want, got, test.name)
	}

	for _, bad := range []string{"../etc/passwd", "b.dng [temp]", ""} {
		_, err := r.Resolve(bad)
		assert.True(t, errors.Is(err, rawerr.ErrUnreadableFile), "%q: %v", bad, err)
	}

	assert.True(t, r.Exists("b.dng"))
	assert.False(t, r.Exists("subdir"))
	assert.False(t, r.Exists("nope.dng"))
}

func TestInputTypes(t *testing.T) {
	n, _ := setup(t)

	it, err := n.InputTypes()
	require.NoError(t, err)

	require.Len(t, it.Required, 1)
	assert.Equal(t, []string{"a.txt", "b.dng"}, it.Required[0].Options)
	assert.True(t, it.Required[0].Upload)

	require.Len(t, it.Optional, 3)
	assert.Equal(t, true, it.Optional[0].Default)
	bright := it.Optional[1]
	assert.Equal(t, 1.0, bright.Default)
	assert.Equal(t, []float64{0.1, 3.0, 0.1}, []float64{bright.Min, bright.Max, bright.Step})
	assert.Equal(t, "clip", it.Optional[2].Default)
	assert.Equal(t, []string{"clip", "ignore", "blend", "reconstruct"}, it.Optional[2].Options)
}

func TestValidate(t *testing.T) {
	n, _ := setup(t)

	assert.NoError(t, n.Validate("b.dng"))
	assert.NoError(t, n.Validate("b.dng [input]"))

	err := n.Validate("missing.dng")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid image file: missing.dng")
}

func TestIsChanged(t *testing.T) {
	n, r := setup(t)

	h1, err := n.IsChanged("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", h1)

	h2, err := n.IsChanged("a.txt")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(filepath.Join(r.InputDir, "a.txt"), []byte("hello!"), 0644))
	h3, err := n.IsChanged("a.txt")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	_, err = n.IsChanged("missing.dng")
	assert.True(t, errors.Is(err, rawerr.ErrUnreadableFile))
}

func TestLoad(t *testing.T) {
	n, _ := setup(t)

	img, err := n.Load(context.Background(), "b.dng", NodeConfig(false, 1.0, "clip"))
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 4, 4, 3}, img.Shape())

	r, g, b := img.RGB(1, 1)
	assert.InDelta(t, 100.0/255, r, 1e-6)
	assert.InDelta(t, 150.0/255, g, 1e-6)
	assert.InDelta(t, 200.0/255, b, 1e-6)
}

func TestLoadErrors(t *testing.T) {
	n, _ := setup(t)

	_, err := n.Load(context.Background(), "a.txt", NodeConfig(true, 1.0, "clip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to load RAW image")
	assert.True(t, errors.Is(err, rawerr.ErrUnsupportedFormat), "%v", err)

	_, err = n.Load(context.Background(), "b.dng", NodeConfig(true, 1.0, "sharpen"))
	assert.True(t, errors.Is(err, rawerr.ErrInvalidParameter), "%v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.Load(ctx, "b.dng", NodeConfig(true, 1.0, "clip"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, rawerr.DecodeFailure, rawerr.KindOf(err))
}
