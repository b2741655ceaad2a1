package output

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/nfnt/resize"
	"golang.org/x/image/tiff"
)

// ToRGBA64 renders the image at 16 bits per channel.
func (img *Image) ToRGBA64() *image.RGBA64 {
	out := image.NewRGBA64(img.Bounds())
	draw.Draw(out, out.Bounds(), img, image.Point{}, draw.Src)
	return out
}

func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// WriteTIFF writes a deflate compressed TIFF; 16 bits per channel if the
// image is an *Image.
func WriteTIFF(w io.Writer, img image.Image) error {
	if oi, ok := img.(*Image); ok {
		img = oi.ToRGBA64()
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// WriteHDR writes a Radiance RGBE file, typically of the linear image
// before tone mapping.
func WriteHDR(w io.Writer, img hdr.Image) error {
	return rgbe.Encode(w, img)
}

// Thumbnail scales img to fit in a maxDim x maxDim box, keeping its
// aspect ratio.
func Thumbnail(img image.Image, maxDim uint) image.Image {
	return resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
}

// Annotate draws a caption into the top left corner.
func Annotate(img image.Image, caption string) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetRGB(0, 0, 0)
	dc.DrawString(caption, 6, 16)
	dc.SetRGB(1, 1, 1)
	dc.DrawString(caption, 5, 15)
	return dc.Image()
}

// WriteFile picks an encoder from the filename's extension: .png, .tif
// or .tiff, or .hdr (which needs an hdr.Image).
func WriteFile(filename string, img image.Image) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("output.WriteFile, open+w '%s': %v", filename, err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".png":
		err = WritePNG(f, img)
	case ".tif", ".tiff":
		err = WriteTIFF(f, img)
	case ".hdr":
		hi, ok := img.(hdr.Image)
		if !ok {
			return fmt.Errorf("output.WriteFile '%s': %T is not an HDR image", filename, img)
		}
		err = WriteHDR(f, hi)
	default:
		return fmt.Errorf("output.WriteFile '%s': don't know how to write '%s'", filename, ext)
	}
	if err != nil {
		return fmt.Errorf("output.WriteFile '%s': %v", filename, err)
	}
	return f.Close()
}
