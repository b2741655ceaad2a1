package rawfile

import (
	"bytes"
	"log"

	"github.com/rwcarlsen/goexif/exif"
)

// loadExif fills in the capture settings from the EXIF sub-IFD. None of
// this is needed to decode pixels, so any failure is logged and ignored.
func loadExif(data []byte, m *Metadata) {
	ex, err := exif.Decode(bytes.NewReader(data))
	if ex == nil {
		log.Printf("rawfile: no EXIF metadata: %v", err)
		return
	}

	if tag, err := ex.Get(exif.ISOSpeedRatings); err == nil {
		if val, err := tag.Int(0); err == nil {
			m.ISO = val
		}
	}

	if tag, err := ex.Get(exif.ExposureTime); err == nil {
		if num, denom, err := tag.Rat2(0); err == nil && denom != 0 {
			m.ExposureTime = float64(num) / float64(denom)
		}
	}

	if tag, err := ex.Get(exif.FNumber); err == nil {
		if num, denom, err := tag.Rat2(0); err == nil && denom != 0 {
			m.FNumber = float64(num) / float64(denom)
		}
	}

	if m.Orientation == OrientationUnknown {
		if tag, err := ex.Get(exif.Orientation); err == nil {
			if val, err := tag.Int(0); err == nil && val >= 1 && val <= 8 {
				m.Orientation = Orientation(val)
			}
		}
	}

	if m.Make == "" {
		if tag, err := ex.Get(exif.Make); err == nil {
			m.Make, _ = tag.StringVal()
		}
	}
	if m.Model == "" {
		if tag, err := ex.Get(exif.Model); err == nil {
			m.Model, _ = tag.StringVal()
		}
	}
}
