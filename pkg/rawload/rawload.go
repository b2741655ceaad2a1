// Package rawload decodes a camera RAW file into a normalized float RGB
// buffer: Format Reader, then Demosaic, then Tone, then Output. It is the
// one entry point the host node and the CLI use.
package rawload

import (
	"fmt"
	"log"

	"github.com/skypies/util/histogram"

	"github.com/abworrall/rawload/pkg/demosaic"
	"github.com/abworrall/rawload/pkg/emath"
	"github.com/abworrall/rawload/pkg/output"
	"github.com/abworrall/rawload/pkg/rawerr"
	"github.com/abworrall/rawload/pkg/rawfile"
	"github.com/abworrall/rawload/pkg/tone"
)

// Debug grids wider than this are halved until they fit.
const maxDumpWidth = 2048

// Decode reads and fully processes the RAW file at path. On error there
// is no partial output; the error carries a rawerr.Kind.
func Decode(path string, cfg Config) (*output.Image, error) {
	op := fmt.Sprintf("rawload.Decode '%s'", path)

	if err := cfg.Validate(); err != nil {
		return nil, rawerr.Wrap(rawerr.InvalidParameter, op, err)
	}

	f, err := rawfile.ReadFile(path)
	if err != nil {
		return nil, rawerr.Wrap(rawerr.DecodeFailure, op, err)
	}

	img, err := DecodeFrame(f, cfg)
	if err != nil {
		return nil, rawerr.Wrap(rawerr.DecodeFailure, op, err)
	}
	return img, nil
}

// DecodeBytes is Decode for a file already in memory.
func DecodeBytes(data []byte, cfg Config) (*output.Image, error) {
	op := "rawload.DecodeBytes"

	if err := cfg.Validate(); err != nil {
		return nil, rawerr.Wrap(rawerr.InvalidParameter, op, err)
	}

	f, err := rawfile.Read(data)
	if err != nil {
		return nil, rawerr.Wrap(rawerr.DecodeFailure, op, err)
	}

	img, err := DecodeFrame(f, cfg)
	if err != nil {
		return nil, rawerr.Wrap(rawerr.DecodeFailure, op, err)
	}
	return img, nil
}

// DecodeFrame runs everything after the Format Reader.
func DecodeFrame(f *rawfile.RawFrame, cfg Config) (*output.Image, error) {
	op := "rawload.DecodeFrame"

	ts, err := cfg.ToneSettings()
	if err != nil {
		return nil, rawerr.Wrap(rawerr.InvalidParameter, op, err)
	}
	dopts, err := cfg.DemosaicOptions()
	if err != nil {
		return nil, rawerr.Wrap(rawerr.InvalidParameter, op, err)
	}
	oopts, err := cfg.OutputOptions()
	if err != nil {
		return nil, rawerr.Wrap(rawerr.InvalidParameter, op, err)
	}

	if cfg.Verbosity > 0 {
		log.Printf("rawload: read %s\n", f)
	}

	img, err := demosaic.Demosaic(f, dopts)
	if err != nil {
		return nil, rawerr.Wrap(rawerr.DecodeFailure, op, err)
	}
	if cfg.Verbosity > 0 {
		log.Printf("rawload: demosaiced (%s) %s\n", dopts.Kernel, img)
	}
	if cfg.Verbosity > 1 {
		logChannelStats(img)
	}

	if cfg.HDRFile != "" {
		if err := output.WriteFile(cfg.HDRFile, img); err != nil {
			return nil, rawerr.Wrap(rawerr.DecodeFailure, op, err)
		}
		log.Printf("rawload: wrote linear image to %s\n", cfg.HDRFile)
	}

	if cfg.DumpGrids != "" {
		ts.LuminanceHook = func(g emath.FloatGrid) {
			if err := dumpGrid(g, cfg.DumpGrids, maxDumpWidth); err != nil {
				log.Printf("rawload: dump luminance grid: %v\n", err)
			}
		}
	}

	if err := tone.Apply(img, ts); err != nil {
		return nil, rawerr.Wrap(rawerr.DecodeFailure, op, err)
	}
	if cfg.Verbosity > 0 {
		log.Printf("rawload: toned with %s\n", ts)
	}

	out, err := output.FromImage(img, oopts)
	if err != nil {
		return nil, rawerr.Wrap(rawerr.DecodeFailure, op, err)
	}
	if cfg.Verbosity > 0 {
		log.Printf("rawload: output %s\n", out)
	}
	return out, nil
}

// logChannelStats prints a histogram per channel of the demosaiced
// image, in 1/256ths of the channel's black-to-white range.
func logChannelStats(img *demosaic.Image) {
	hists := []histogram.Histogram{
		histogram.Histogram{NumBuckets: 32, ValMin: 0, ValMax: 256},
		histogram.Histogram{NumBuckets: 32, ValMin: 0, ValMax: 256},
		histogram.Histogram{NumBuckets: 32, ValMin: 0, ValMax: 256},
	}

	for i, v := range img.Pix {
		c := i % 3
		norm := (float64(v) - img.BlackLevel[c]) / (img.WhiteLevel[c] - img.BlackLevel[c])
		hists[c].Add(histogram.ScalarVal(int(emath.Clamp(norm, 0, 1) * 255)))
	}

	for c, name := range []string{"red", "green", "blue"} {
		log.Printf("rawload: %s channel histogram:\n%v\n", name, &hists[c])
	}
}

// dumpGrid writes the grid as a PNG, halving it until it is no wider than
// maxWidth.
func dumpGrid(g emath.FloatGrid, filename string, maxWidth int) error {
	for g.Dx() > maxWidth {
		g = g.DownSample()
	}
	return g.ToImg("luminance "+g.Stats(), filename)
}
