package ecolor

import (
	"fmt"

	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/rawload/pkg/emath"
)

// A CameraNative color is a demosaiced sensor reading, normalized to
// [0.0, 1.0] (black level removed, white level == 1.0), that has not yet
// been white balanced or color corrected. It exists in an RGB space
// specific to the camera.
type CameraNative struct {
	hdrcolor.RGB // This field implements color.Color and hdrcolor.Color interfaces
}

var (
	// Translates XYZ(D50) to sRGB(D65)
	//
	// https://sites.google.com/site/crossstereo/raw-converting/dng
	// http://www.brucelindbloom.com/index.html?Eqn_RGB_XYZ_Matrix.html
	//
	// We use the second table on Bruce Lindblooms's site; it bundles in
	// the chromatic adaptation transform that we need to move from D50
	// to D65 reference whites without seeing the image's white balance
	// shift.
	XYZD50_to_linear_sRGBD65 = emath.Mat3{
		3.1338561, -1.6168667, -0.4906146,
		-0.9787684, 1.9161415, 0.0334540,
		0.0719453, -0.2289914, 1.4052427,
	}

	// linear sRGB(D65) to XYZ(D65); used to turn a DNG ColorMatrix
	// (XYZ -> camera) into a camera -> sRGB matrix, the dcraw way.
	Linear_sRGB_to_XYZD65 = emath.Mat3{
		0.4124564, 0.3575761, 0.1804375,
		0.2126729, 0.7151522, 0.0721750,
		0.0193339, 0.1191920, 0.9503041,
	}
)

func NewCameraNative(r, g, b float64) CameraNative {
	return CameraNative{RGB: hdrcolor.RGB{R: r, G: g, B: b}}
}

func (cn CameraNative) String() string {
	return fmt.Sprintf("[%12.10f, %12.10f, %12.10f]", cn.RGB.R, cn.RGB.G, cn.RGB.B)
}

func (cn CameraNative) Vec3() emath.Vec3 { return emath.Vec3{cn.R, cn.G, cn.B} }

// ApplyAsShotNeutral performs white balancing. After this operation,
// the color is no longer CameraNative, it is camera-neutral (i.e.
// white balanced), so return as arbitrary RGB. The multipliers are
// rescaled so green is untouched, which keeps a clipped green at 1.0.
func ApplyAsShotNeutral(cn CameraNative, asShotNeutral emath.Vec3) hdrcolor.RGB {
	return ApplyMatrix(cn.RGB, WhiteBalanceMatrix(asShotNeutral))
}

// WhiteBalanceMatrix has the inverted neutral, normalized on green, on
// its diagonal.
func WhiteBalanceMatrix(asShotNeutral emath.Vec3) emath.Mat3 {
	n := asShotNeutral
	return emath.Vec3{n[0] / n[1], 1.0, n[2] / n[1]}.InvertDiag()
}

// ApplyMatrix maps a white-balanced RGB through a 3x3 color matrix.
func ApplyMatrix(rgb hdrcolor.RGB, m emath.Mat3) hdrcolor.RGB {
	v := m.Apply(emath.Vec3{rgb.R, rgb.G, rgb.B})
	return hdrcolor.RGB{R: v[0], G: v[1], B: v[2]}
}
