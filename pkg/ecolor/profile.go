package ecolor

import (
	"fmt"

	"github.com/abworrall/rawload/pkg/emath"
)

// A Profile is the subset of a DNG camera profile we need to develop a
// camera-native pixel into linear sRGB(D65): a white balance, and one
// matrix that maps white-balanced camera RGB to linear sRGB.
type Profile struct {
	AsShotNeutral emath.Vec3
	CameraToSRGB  emath.Mat3

	HasNeutral bool
	HasMatrix  bool
	Source     string // which tag the matrix came from, for logging
}

// NewProfile builds a Profile out of the raw DNG tag values; any of them
// may be nil. If a ForwardMatrix (white-balanced camera -> XYZ(D50)) is
// present we use it, as the DNG spec prefers it; otherwise we invert the
// ColorMatrix (XYZ -> camera).
func NewProfile(colorMatrix, forwardMatrix, asShotNeutral []float64) (Profile, error) {
	p := Profile{}

	if len(asShotNeutral) == 3 {
		if asShotNeutral[0] <= 0 || asShotNeutral[1] <= 0 || asShotNeutral[2] <= 0 {
			return p, fmt.Errorf("AsShotNeutral %v has non-positive entries", asShotNeutral)
		}
		p.AsShotNeutral = emath.Vec3{asShotNeutral[0], asShotNeutral[1], asShotNeutral[2]}
		p.HasNeutral = true
	}

	switch {
	case len(forwardMatrix) == 9:
		fm := emath.Mat3{}
		copy(fm[:], forwardMatrix)
		p.CameraToSRGB = XYZD50_to_linear_sRGBD65.Mult(fm)
		p.HasMatrix = true
		p.Source = "ForwardMatrix"

	case len(colorMatrix) == 9:
		m, err := CameraToSRGBFromColorMatrix(colorMatrix)
		if err != nil {
			return p, err
		}
		p.CameraToSRGB = m
		p.HasMatrix = true
		p.Source = "ColorMatrix"

	case len(forwardMatrix) != 0 || len(colorMatrix) != 0:
		return p, fmt.Errorf("color matrix must have 9 entries (got fm=%d, cm=%d)", len(forwardMatrix), len(colorMatrix))
	}

	return p, nil
}

// CameraToSRGBFromColorMatrix follows dcraw: camRGB = camXYZ * sRGB->XYZ,
// normalize rows so camera white maps to RGB white, then invert.
func CameraToSRGBFromColorMatrix(colorMatrix []float64) (emath.Mat3, error) {
	camXYZ := emath.Mat3{}
	copy(camXYZ[:], colorMatrix)

	camRGB := camXYZ.Mult(Linear_sRGB_to_XYZD65).NormalizeRows()
	rgbCam, err := camRGB.Inverse()
	if err != nil {
		return emath.Mat3{}, fmt.Errorf("ColorMatrix not invertible: %v", err)
	}
	return rgbCam, nil
}

func (p Profile) String() string {
	s := "Profile{"
	if p.HasNeutral {
		s += fmt.Sprintf(" AsShotNeutral=%s", p.AsShotNeutral)
	}
	if p.HasMatrix {
		s += fmt.Sprintf(" CameraToSRGB(from %s)=\n%s", p.Source, p.CameraToSRGB)
	}
	return s + "}"
}

// WhiteBalance applies the as-shot neutral, if we have one.
func (p Profile) WhiteBalance(cn CameraNative) CameraNative {
	if !p.HasNeutral {
		return cn
	}
	return CameraNative{RGB: ApplyAsShotNeutral(cn, p.AsShotNeutral)}
}

// DevelopDNG white balances, then maps into linear sRGB(D65). Negative
// results (out of gamut) are floored at zero; values above 1.0 are kept
// so highlight handling can see them.
func (p Profile) DevelopDNG(cn CameraNative) CameraNative {
	wb := p.WhiteBalance(cn)
	if !p.HasMatrix {
		return wb
	}
	v := p.CameraToSRGB.Apply(wb.Vec3())
	v.FloorAt(0.0)
	return NewCameraNative(v[0], v[1], v[2])
}
