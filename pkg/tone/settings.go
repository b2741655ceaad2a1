package tone

import (
	"fmt"
	"math"
	"strings"

	"github.com/abworrall/rawload/pkg/emath"
	"github.com/abworrall/rawload/pkg/rawerr"
)

type HighlightMode string

const (
	Clip        HighlightMode = "clip"        // clamp each channel at 1.0
	Ignore      HighlightMode = "ignore"      // leave values above 1.0 for the output adapter
	Blend       HighlightMode = "blend"       // mix clipped and hue-preserving estimates
	Reconstruct HighlightMode = "reconstruct" // rebuild clipped channels from the others
)

func ParseHighlightMode(s string) (HighlightMode, error) {
	switch m := HighlightMode(strings.ToLower(s)); m {
	case Clip, Ignore, Blend, Reconstruct:
		return m, nil
	case "":
		return Clip, nil
	}
	return "", rawerr.Errorf(rawerr.InvalidParameter, "tone.ParseHighlightMode", "unknown highlight mode %q", s)
}

// Develop says how far to take camera-native color before tone mapping.
type Develop string

const (
	DevelopNone   Develop = "none"   // stay camera native
	DevelopWB     Develop = "wb"     // apply AsShotNeutral
	DevelopCamera Develop = "camera" // AsShotNeutral, then camera -> linear sRGB(D65)
)

func ParseDevelop(s string) (Develop, error) {
	switch d := Develop(strings.ToLower(s)); d {
	case DevelopNone, DevelopWB, DevelopCamera:
		return d, nil
	case "":
		return DevelopNone, nil
	}
	return "", rawerr.Errorf(rawerr.InvalidParameter, "tone.ParseDevelop", "unknown develop mode %q", s)
}

const (
	MinBrightness = 0.1
	MaxBrightness = 3.0

	// Auto-bright only ever brightens, and by no more than this.
	MaxAutoBrightScale = 16.0
)

// Settings control one call to Apply.
type Settings struct {
	AutoBright bool
	Brightness float64 // manual multiplier, [0.1, 3.0]
	Highlight  HighlightMode
	Develop    Develop

	// AutoBrightPercentile is the luminance percentile (0,100] that
	// auto-bright maps to 1.0. Zero means 99.
	AutoBrightPercentile float64

	Workers int

	// If set, called with the per-pixel luminance grid auto-bright worked
	// from. Used for debug dumps.
	LuminanceHook func(emath.FloatGrid)
}

func DefaultSettings() Settings {
	return Settings{
		AutoBright:           true,
		Brightness:           1.0,
		Highlight:            Clip,
		Develop:              DevelopNone,
		AutoBrightPercentile: 99,
	}
}

func (s Settings) String() string {
	return fmt.Sprintf("tone{auto=%v, bright=%.2f, highlight=%s, develop=%s, pct=%.1f}",
		s.AutoBright, s.Brightness, s.Highlight, s.Develop, s.percentile())
}

func (s Settings) percentile() float64 {
	if s.AutoBrightPercentile == 0 {
		return 99
	}
	return s.AutoBrightPercentile
}

// Validate checks every knob; Apply calls it before touching any pixel.
func (s Settings) Validate() error {
	op := "tone.Settings.Validate"

	if math.IsNaN(s.Brightness) || s.Brightness < MinBrightness || s.Brightness > MaxBrightness {
		return rawerr.Errorf(rawerr.InvalidParameter, op, "brightness %v outside [%.1f, %.1f]", s.Brightness, MinBrightness, MaxBrightness)
	}
	if _, err := ParseHighlightMode(string(s.Highlight)); err != nil {
		return err
	}
	if _, err := ParseDevelop(string(s.Develop)); err != nil {
		return err
	}
	if p := s.percentile(); math.IsNaN(p) || p <= 0 || p > 100 {
		return rawerr.Errorf(rawerr.InvalidParameter, op, "auto-bright percentile %v outside (0, 100]", p)
	}
	return nil
}
