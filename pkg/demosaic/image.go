package demosaic

import (
	"fmt"
	"image"
	"image/color"

	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/rawload/pkg/rawfile"
)

// Image is a full color image, still in the sensor's sample units (so
// black and white levels still apply). Pix is interleaved R,G,B, row-major.
// Implements image.Image, and hdr.Image so it can be written out as RGBE.
type Image struct {
	Width  int
	Height int
	Pix    []float32

	BlackLevel [3]float64
	WhiteLevel [3]float64
	BitDepth   int
	Meta       rawfile.Metadata
}

// NewImage returns a black image with levels of [0,1]; handy when the
// pixels come from somewhere other than a RawFrame.
func NewImage(w, h int) *Image {
	return &Image{
		Width:      w,
		Height:     h,
		Pix:        make([]float32, w*h*3),
		WhiteLevel: [3]float64{1, 1, 1},
	}
}

// Implement image.Image
func (img *Image) ColorModel() color.Model { return hdrcolor.RGBModel }
func (img *Image) Bounds() image.Rectangle { return image.Rect(0, 0, img.Width, img.Height) }
func (img *Image) At(x, y int) color.Color { return img.HDRAt(x, y) }

// Implement hdr.Image. Values are normalized against the levels, so an
// image fresh from Demosaic and one that has been through tone look the
// same to an HDR encoder.
func (img *Image) HDRAt(x, y int) hdrcolor.Color {
	r, g, b := img.RGB(x, y)
	return hdrcolor.RGB{
		R: img.norm(0, r),
		G: img.norm(1, g),
		B: img.norm(2, b),
	}
}
func (img *Image) Size() int { return img.Width * img.Height }

func (img *Image) norm(c int, v float32) float64 {
	span := img.WhiteLevel[c] - img.BlackLevel[c]
	if span <= 0 {
		return float64(v)
	}
	return (float64(v) - img.BlackLevel[c]) / span
}

func (img *Image) offset(x, y int) int { return (y*img.Width + x) * 3 }

func (img *Image) RGB(x, y int) (r, g, b float32) {
	i := img.offset(x, y)
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

func (img *Image) SetRGB(x, y int, r, g, b float32) {
	i := img.offset(x, y)
	img.Pix[i], img.Pix[i+1], img.Pix[i+2] = r, g, b
}

func (img *Image) String() string {
	return fmt.Sprintf("demosaic.Image %dx%d, black %v, white %v", img.Width, img.Height, img.BlackLevel, img.WhiteLevel)
}
