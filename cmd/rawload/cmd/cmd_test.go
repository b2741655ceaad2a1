package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/rawload/pkg/rawfile/rawfiletest"
)

func writeDNG(t *testing.T, dir string) string {
	path, err := rawfiletest.WriteFile(dir, "shot.dng", rawfiletest.Options{
		Width: 8, Height: 6, BitsPerSample: 12,
		Samples: rawfiletest.Bayer(8, 6, "RGGB", 1000, 2000, 500),
	})
	require.NoError(t, err)
	return path
}

func TestDecodeCmd(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	path := writeDNG(t, in)

	root := NewRoot(context.Background(), "test")
	root.SetArgs([]string{"decode", "--bright", "2", "--gamma", "srgb", "--hdr", "--caption", "-o", out, "-f", "tiff", path})
	require.NoError(t, root.Execute())

	for _, name := range []string{"shot.tiff", "shot.hdr"} {
		st, err := os.Stat(filepath.Join(out, name))
		require.NoError(t, err, name)
		assert.True(t, st.Size() > 0, name)
	}
}

func TestConfigFromFlags(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("highlight_mode: blend\nbright_adjustment: 2.5\n"), 0644))

	root := NewRoot(context.Background(), "test")
	decode, _, err := root.Find([]string{"decode"})
	require.NoError(t, err)
	require.NoError(t, decode.ParseFlags([]string{"--config", yamlFile, "--bright", "1.5"}))

	cfg, err := configFromFlags(decode)
	require.NoError(t, err)
	assert.Equal(t, "blend", cfg.HighlightMode) // from the file
	assert.Equal(t, 1.5, cfg.BrightAdjustment)  // flag wins
	assert.Equal(t, true, cfg.UseAutoBright)    // default
}

func TestDecodeCmdErrors(t *testing.T) {
	path := writeDNG(t, t.TempDir())

	tests := [][]string{
		{"decode", "--highlight", "sharpen", path},
		{"decode", "--bright", "3.5", path},
		{"decode", "-f", "gif", path},
		{"decode", filepath.Join(t.TempDir(), "missing.dng")},
		{"decode"},
	}
	for _, args := range tests {
		root := NewRoot(context.Background(), "test")
		root.SetArgs(append(args, "-o", t.TempDir()))
		assert.Error(t, root.Execute(), "%v", args)
	}
}
