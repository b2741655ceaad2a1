package emath

// Small fixed-size matrices: 3x3 for colour transforms, 2x3 affine for
// orientation.

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

// Use local types so we can hang methods off them
type Aff3 f64.Aff3
type Vec3 f64.Vec3
type Mat3 f64.Mat3

// Cut-n-pasted from image@0.7.0/draw/scale:matMul
func (p Aff3) Mult(q Aff3) Aff3 {
	return Aff3{
		p[3*0+0]*q[3*0+0] + p[3*0+1]*q[3*1+0],
		p[3*0+0]*q[3*0+1] + p[3*0+1]*q[3*1+1],
		p[3*0+0]*q[3*0+2] + p[3*0+1]*q[3*1+2] + p[3*0+2],
		p[3*1+0]*q[3*0+0] + p[3*1+1]*q[3*1+0],
		p[3*1+0]*q[3*0+1] + p[3*1+1]*q[3*1+1],
		p[3*1+0]*q[3*0+2] + p[3*1+1]*q[3*1+2] + p[3*1+2],
	}
}

func Identity() Aff3 {
	return Aff3{1, 0, 0, 0, 1, 0}
}

func (m1 Aff3) Translate(tx, ty float64) Aff3 {
	return m1.Mult(Aff3{1, 0, tx, 0, 1, ty})
}

// Rotate by a multiple of 90 degrees. The trig is rounded so pixel
// coordinates stay exact integers.
func (m1 Aff3) Rotate(thetaDeg float64) Aff3 {
	cosTheta := math.Round(math.Cos(thetaDeg * math.Pi / 180.0))
	sinTheta := math.Round(math.Sin(thetaDeg * math.Pi / 180.0))
	return m1.Mult(Aff3{cosTheta, -1 * sinTheta, 0, sinTheta, cosTheta, 0})
}

// MirrorX flips left/right about x=0.
func (m1 Aff3) MirrorX() Aff3 {
	return m1.Mult(Aff3{-1, 0, 0, 0, 1, 0})
}

// ApplyInt maps an integer point; used for pixel remapping, where all
// the coefficients are -1, 0 or 1 plus integer offsets.
func (m Aff3) ApplyInt(x, y int) (int, int) {
	fx, fy := float64(x), float64(y)
	return int(math.Round(m[0]*fx + m[1]*fy + m[2])), int(math.Round(m[3]*fx + m[4]*fy + m[5]))
}

func (a Mat3) Mult(b Mat3) Mat3 {
	return Mat3{
		a[3*0+0]*b[3*0+0] + a[3*0+1]*b[3*1+0] + a[3*0+2]*b[3*2+0],
		a[3*0+0]*b[3*0+1] + a[3*0+1]*b[3*1+1] + a[3*0+2]*b[3*2+1],
		a[3*0+0]*b[3*0+2] + a[3*0+1]*b[3*1+2] + a[3*0+2]*b[3*2+2],

		a[3*1+0]*b[3*0+0] + a[3*1+1]*b[3*1+0] + a[3*1+2]*b[3*2+0],
		a[3*1+0]*b[3*0+1] + a[3*1+1]*b[3*1+1] + a[3*1+2]*b[3*2+1],
		a[3*1+0]*b[3*0+2] + a[3*1+1]*b[3*1+2] + a[3*1+2]*b[3*2+2],

		a[3*2+0]*b[3*0+0] + a[3*2+1]*b[3*1+0] + a[3*2+2]*b[3*2+0],
		a[3*2+0]*b[3*0+1] + a[3*2+1]*b[3*1+1] + a[3*2+2]*b[3*2+1],
		a[3*2+0]*b[3*0+2] + a[3*2+1]*b[3*1+2] + a[3*2+2]*b[3*2+2],
	}
}

func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		(m[3*0+0]*v[0] + m[3*0+1]*v[1] + m[3*0+2]*v[2]),
		(m[3*1+0]*v[0] + m[3*1+1]*v[1] + m[3*1+2]*v[2]),
		(m[3*2+0]*v[0] + m[3*2+1]*v[1] + m[3*2+2]*v[2]),
	}
}

// Inverse leans on gonum; DNG ColorMatrix tags map XYZ->camera, and we
// need the other direction.
func (m Mat3) Inverse() (Mat3, error) {
	a := mat.NewDense(3, 3, m[:])
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return Mat3{}, fmt.Errorf("mat3 inverse: %v", err)
	}
	ret := Mat3{}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			ret[3*r+c] = inv.At(r, c)
		}
	}
	return ret, nil
}

// NormalizeRows scales each row so it sums to 1.0; a camera->RGB matrix
// built this way maps the camera's white to RGB white.
func (m Mat3) NormalizeRows() Mat3 {
	ret := m
	for r := 0; r < 3; r++ {
		sum := m[3*r+0] + m[3*r+1] + m[3*r+2]
		if sum == 0 {
			continue
		}
		ret[3*r+0] /= sum
		ret[3*r+1] /= sum
		ret[3*r+2] /= sum
	}
	return ret
}

func (m Mat3) String() string {
	str := fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*0+0], m[3*0+1], m[3*0+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*1+0], m[3*1+1], m[3*1+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*2+0], m[3*2+1], m[3*2+2])
	return str
}

func (v Vec3) String() string {
	return fmt.Sprintf("[%12.10f, %12.10f, %12.10f]", v[0], v[1], v[2])
}

// Places the vector on the diagonal of a matrix, then inverts it
func (v Vec3) InvertDiag() Mat3 {
	return Mat3{
		1.0 / v[0], 0, 0,
		0, 1.0 / v[1], 0,
		0, 0, 1.0 / v[2],
	}
}

func (v Vec3) Max() float64 {
	return math.Max(v[0], math.Max(v[1], v[2]))
}

func (v *Vec3) FloorAt(min float64) {
	if v[0] < min {
		v[0] = min
	}
	if v[1] < min {
		v[1] = min
	}
	if v[2] < min {
		v[2] = min
	}
}

func (v *Vec3) CeilingAt(max float64) {
	if v[0] > max {
		v[0] = max
	}
	if v[1] > max {
		v[1] = max
	}
	if v[2] > max {
		v[2] = max
	}
}
