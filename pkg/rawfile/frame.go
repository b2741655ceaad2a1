package rawfile

import (
	"fmt"
)

// Orientation is the EXIF/TIFF orientation code, 1-8. Zero means the file
// didn't say.
type Orientation int

const (
	OrientationUnknown   Orientation = 0
	OrientationNormal    Orientation = 1
	OrientationMirrorH   Orientation = 2
	OrientationRotate180 Orientation = 3
	OrientationMirrorV   Orientation = 4
	OrientationTranspose Orientation = 5
	OrientationRotate90  Orientation = 6 // rotate 90 CW to display
	OrientationTransvers Orientation = 7
	OrientationRotate270 Orientation = 8 // rotate 90 CCW to display
)

// SwapsAxes is true for the orientations that turn a WxH frame into a
// HxW picture.
func (o Orientation) SwapsAxes() bool { return o >= 5 && o <= 8 }

// Metadata is what we know about how the frame was captured, and how to
// develop it.
type Metadata struct {
	Make         string
	Model        string
	ISO          int
	ExposureTime float64 // seconds
	FNumber      float64
	Orientation  Orientation

	// DNG color data; nil when the file doesn't have it.
	ColorMatrix   []float64 // XYZ -> camera native, 3x3 row-major
	ForwardMatrix []float64 // white balanced camera -> XYZ(D50)
	AsShotNeutral []float64 // camera native coords of a neutral object

	Compression int
	Source      string // which directory the CFA plane came from
}

func (m Metadata) String() string {
	s := fmt.Sprintf("%s %s, ISO%d", m.Make, m.Model, m.ISO)
	if m.ExposureTime > 0 {
		if m.ExposureTime < 1 {
			s += fmt.Sprintf(", 1/%.0fs", 1/m.ExposureTime)
		} else {
			s += fmt.Sprintf(", %.1fs", m.ExposureTime)
		}
	}
	if m.FNumber > 0 {
		s += fmt.Sprintf(", f/%.1f", m.FNumber)
	}
	s += m.exposureString()
	return s + fmt.Sprintf(", orientation %d, compression %d, from %s", m.Orientation, m.Compression, m.Source)
}

// A RawFrame is the single-channel mosaic as read off the sensor: one
// sample per photosite, row-major. It is not modified after ReadFile
// returns it.
type RawFrame struct {
	Width   int
	Height  int
	Samples []uint16

	CFA        CFAPattern
	BitDepth   int
	BlackLevel [3]float64 // per color, indexed by Channel
	WhiteLevel [3]float64

	Meta Metadata
}

func (f *RawFrame) At(x, y int) uint16 { return f.Samples[y*f.Width+x] }

func (f *RawFrame) String() string {
	return fmt.Sprintf("RawFrame %dx%d, %d-bit, CFA %s, black %v, white %v [%s]",
		f.Width, f.Height, f.BitDepth, f.CFA, f.BlackLevel, f.WhiteLevel, f.Meta)
}

// NewRawFrame is mostly for tests and for callers that already have a
// mosaic in memory. Black is 0, white is the max for the bit depth.
func NewRawFrame(w, h, bitDepth int, cfa CFAPattern, samples []uint16) (*RawFrame, error) {
	if len(samples) != w*h {
		return nil, fmt.Errorf("NewRawFrame: %dx%d needs %d samples, got %d", w, h, w*h, len(samples))
	}
	if err := cfa.Validate(w, h); err != nil {
		return nil, err
	}
	white := float64(uint32(1)<<uint(bitDepth) - 1)
	return &RawFrame{
		Width:      w,
		Height:     h,
		Samples:    samples,
		CFA:        cfa,
		BitDepth:   bitDepth,
		WhiteLevel: [3]float64{white, white, white},
	}, nil
}
