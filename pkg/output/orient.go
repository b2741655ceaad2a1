package output

import (
	"github.com/abworrall/rawload/pkg/emath"
	"github.com/abworrall/rawload/pkg/rawfile"
)

// orientTransform maps a pixel of a w*h source to where it should be
// displayed, for each of the EXIF orientations.
func orientTransform(o rawfile.Orientation, w, h int) emath.Aff3 {
	fw, fh := float64(w-1), float64(h-1)
	id := emath.Identity()

	switch o {
	case rawfile.OrientationMirrorH:
		return id.Translate(fw, 0).MirrorX()
	case rawfile.OrientationRotate180:
		return id.Translate(fw, fh).Rotate(180)
	case rawfile.OrientationMirrorV:
		return id.Translate(fw, fh).Rotate(180).Translate(fw, 0).MirrorX()
	case rawfile.OrientationTranspose:
		return id.MirrorX().Rotate(90)
	case rawfile.OrientationRotate90:
		return id.Translate(fh, 0).Rotate(90)
	case rawfile.OrientationTransvers:
		return id.Translate(fh, fw).Rotate(180).MirrorX().Rotate(90)
	case rawfile.OrientationRotate270:
		return id.Translate(0, fw).Rotate(270)
	}
	return id
}

// Orient returns the image as it should be displayed. Orientations 5-8
// swap width and height.
func Orient(img *Image, o rawfile.Orientation) *Image {
	if o <= rawfile.OrientationNormal || o > rawfile.OrientationRotate270 {
		return img
	}

	out := &Image{Width: img.Width, Height: img.Height, Pix: make([]float32, len(img.Pix))}
	if o.SwapsAxes() {
		out.Width, out.Height = img.Height, img.Width
	}

	m := orientTransform(o, img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			dx, dy := m.ApplyInt(x, y)
			si, di := (y*img.Width+x)*3, (dy*out.Width+dx)*3
			copy(out.Pix[di:di+3], img.Pix[si:si+3])
		}
	}
	return out
}
