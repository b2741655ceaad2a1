// Package output turns a toned image into the buffer handed to callers:
// float32, [1,H,W,3], R,G,B, every value in [0,1].
package output

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/abworrall/rawload/pkg/demosaic"
	"github.com/abworrall/rawload/pkg/emath"
	"github.com/abworrall/rawload/pkg/rawerr"
)

type Gamma string

const (
	GammaLinear Gamma = "linear"
	GammaSRGB   Gamma = "srgb"
	GammaBT709  Gamma = "bt709" // LibRaw's default curve
)

func ParseGamma(s string) (Gamma, error) {
	switch g := Gamma(strings.ToLower(s)); g {
	case GammaLinear, GammaSRGB, GammaBT709:
		return g, nil
	case "":
		return GammaLinear, nil
	}
	return "", rawerr.Errorf(rawerr.InvalidParameter, "output.ParseGamma", "unknown gamma %q", s)
}

type Options struct {
	Gamma            Gamma
	BitDepth         int  // 0 leaves values continuous; 8 or 16 quantizes to that many levels
	ApplyOrientation bool // rotate/flip per the file's EXIF orientation
}

// Image is the final buffer, shape [1, Height, Width, 3], row-major.
type Image struct {
	Height int
	Width  int
	Pix    []float32
}

// Shape is the tensor shape of Pix.
func (img *Image) Shape() [4]int { return [4]int{1, img.Height, img.Width, 3} }

func (img *Image) RGB(x, y int) (r, g, b float32) {
	i := (y*img.Width + x) * 3
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

// Implement image.Image, at 16 bits per channel.
func (img *Image) ColorModel() color.Model { return color.RGBA64Model }
func (img *Image) Bounds() image.Rectangle { return image.Rect(0, 0, img.Width, img.Height) }
func (img *Image) At(x, y int) color.Color {
	r, g, b := img.RGB(x, y)
	return color.RGBA64{R: to16(r), G: to16(g), B: to16(b), A: 0xffff}
}

func to16(v float32) uint16 { return uint16(math.Round(float64(v) * 0xffff)) }

func (img *Image) String() string {
	return fmt.Sprintf("output.Image%v", img.Shape())
}

// FromImage clamps into [0,1], then applies the optional gamma curve,
// quantization and orientation. It never modifies src.
func FromImage(src *demosaic.Image, opts Options) (*Image, error) {
	op := "output.FromImage"

	gamma, err := ParseGamma(string(opts.Gamma))
	if err != nil {
		return nil, err
	}
	var levels float64
	switch opts.BitDepth {
	case 0:
	case 8:
		levels = 255
	case 16:
		levels = 65535
	default:
		return nil, rawerr.Errorf(rawerr.InvalidParameter, op, "bit depth %d, want 0, 8 or 16", opts.BitDepth)
	}
	if src == nil || len(src.Pix) != src.Width*src.Height*3 {
		return nil, rawerr.Errorf(rawerr.InvalidParameter, op, "image buffer does not match its dimensions")
	}

	out := &Image{Height: src.Height, Width: src.Width, Pix: make([]float32, len(src.Pix))}
	for i := 0; i < len(src.Pix); i += 3 {
		v := emath.Vec3{float64(src.Pix[i]), float64(src.Pix[i+1]), float64(src.Pix[i+2])}
		v.FloorAt(0)
		v.CeilingAt(1)
		r, g, b := v[0], v[1], v[2]

		switch gamma {
		case GammaSRGB:
			c := colorful.LinearRgb(r, g, b)
			r, g, b = c.R, c.G, c.B
		case GammaBT709:
			r, g, b = emath.GammaExpand_BT709(r), emath.GammaExpand_BT709(g), emath.GammaExpand_BT709(b)
		}

		if levels > 0 {
			r, g, b = math.Round(r*levels)/levels, math.Round(g*levels)/levels, math.Round(b*levels)/levels
		}

		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = float32(r), float32(g), float32(b)
	}

	if opts.ApplyOrientation {
		out = Orient(out, src.Meta.Orientation)
	}

	return out, nil
}
