package rawload

import (
	"fmt"
	"io/ioutil"
	"log"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/rawload/pkg/demosaic"
	"github.com/abworrall/rawload/pkg/output"
	"github.com/abworrall/rawload/pkg/rawerr"
	"github.com/abworrall/rawload/pkg/tone"
)

// Config is everything a decode can be told to do. The first three are
// the knobs the host node exposes; the rest are for the CLI and for
// debugging.
type Config struct {
	UseAutoBright    bool    `yaml:"use_auto_bright"`
	BrightAdjustment float64 `yaml:"bright_adjustment"`
	HighlightMode    string  `yaml:"highlight_mode"`

	Demosaic             string  `yaml:"demosaic"`
	Develop              string  `yaml:"develop"`
	Gamma                string  `yaml:"gamma"`
	OutputBPS            int     `yaml:"output_bps"`
	Orient               bool    `yaml:"orient"`
	AutoBrightPercentile float64 `yaml:"auto_bright_percentile"`

	Workers   int `yaml:"workers"`
	Verbosity int `yaml:"verbosity"`

	DumpGrids string `yaml:"dump_grids,omitempty"` // write the auto-bright luminance grid to this PNG
	HDRFile   string `yaml:"hdr_file,omitempty"`   // write the demosaiced linear image to this .hdr
}

func NewConfig() Config {
	return Config{
		UseAutoBright:        true,
		BrightAdjustment:     1.0,
		HighlightMode:        string(tone.Clip),
		Demosaic:             string(demosaic.Bilinear),
		Develop:              string(tone.DevelopNone),
		Gamma:                string(output.GammaLinear),
		AutoBrightPercentile: 99,
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

// LoadConfig reads a YAML config; fields it doesn't mention keep their
// defaults.
func LoadConfig(filename string) (Config, error) {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read '%s': %v", filename, err)
	}

	c, err := newConfigFromYaml(contents)
	if err != nil {
		return Config{}, rawerr.New(rawerr.InvalidParameter, fmt.Sprintf("config parse '%s'", filename), err)
	}
	return c, nil
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// Validate checks every field, so a bad value is reported before any
// file is read or any pixel is processed.
func (c Config) Validate() error {
	if _, err := c.ToneSettings(); err != nil {
		return err
	}
	if _, err := c.DemosaicOptions(); err != nil {
		return err
	}
	if _, err := c.OutputOptions(); err != nil {
		return err
	}
	return nil
}

func (c Config) ToneSettings() (tone.Settings, error) {
	mode, err := tone.ParseHighlightMode(c.HighlightMode)
	if err != nil {
		return tone.Settings{}, err
	}
	develop, err := tone.ParseDevelop(c.Develop)
	if err != nil {
		return tone.Settings{}, err
	}

	s := tone.Settings{
		AutoBright:           c.UseAutoBright,
		Brightness:           c.BrightAdjustment,
		Highlight:            mode,
		Develop:              develop,
		AutoBrightPercentile: c.AutoBrightPercentile,
		Workers:              c.Workers,
	}
	return s, s.Validate()
}

func (c Config) DemosaicOptions() (demosaic.Options, error) {
	k, err := demosaic.ParseKernel(c.Demosaic)
	return demosaic.Options{Kernel: k, Workers: c.Workers}, err
}

func (c Config) OutputOptions() (output.Options, error) {
	g, err := output.ParseGamma(c.Gamma)
	if err != nil {
		return output.Options{}, err
	}
	switch c.OutputBPS {
	case 0, 8, 16:
	default:
		return output.Options{}, rawerr.Errorf(rawerr.InvalidParameter, "rawload.Config", "output_bps %d, want 0, 8 or 16", c.OutputBPS)
	}
	return output.Options{Gamma: g, BitDepth: c.OutputBPS, ApplyOrientation: c.Orient}, nil
}
