package ecolor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/rawload/pkg/emath"
)

func TestWhiteBalanceMatrix(t *testing.T) {
	m := WhiteBalanceMatrix(emath.Vec3{0.5, 1.0, 0.25})
	assert.Equal(t, emath.Mat3{2, 0, 0, 0, 1, 0, 0, 0, 4}, m)

	// Green normalized: a neutral with green at 2.0 gives the same matrix.
	assert.Equal(t, m, WhiteBalanceMatrix(emath.Vec3{1.0, 2.0, 0.5}))

	rgb := ApplyAsShotNeutral(NewCameraNative(0.25, 0.5, 0.125), emath.Vec3{0.5, 1.0, 0.25})
	assert.Equal(t, 0.5, rgb.R)
	assert.Equal(t, 0.5, rgb.G)
	assert.Equal(t, 0.5, rgb.B)
}

func TestNewProfileFromColorMatrix(t *testing.T) {
	// A camera whose native space is exactly XYZ(D65): ColorMatrix == identity.
	p, err := NewProfile([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, nil, []float64{1, 1, 1})
	require.NoError(t, err)
	require.True(t, p.HasMatrix)
	require.True(t, p.HasNeutral)
	assert.Equal(t, "ColorMatrix", p.Source)

	// Rows are normalized, so white-balanced camera white develops to RGB white.
	out := p.DevelopDNG(NewCameraNative(1, 1, 1))
	assert.InDelta(t, 1.0, out.R, 1e-9)
	assert.InDelta(t, 1.0, out.G, 1e-9)
	assert.InDelta(t, 1.0, out.B, 1e-9)
	assert.Contains(t, p.String(), "ColorMatrix")
}

func TestNewProfilePrefersForwardMatrix(t *testing.T) {
	p, err := NewProfile([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ForwardMatrix", p.Source)
	assert.Equal(t, XYZD50_to_linear_sRGBD65, p.CameraToSRGB)
	assert.False(t, p.HasNeutral)
}

func TestNewProfileErrors(t *testing.T) {
	_, err := NewProfile([]float64{1, 2}, nil, nil)
	assert.Error(t, err)

	_, err = NewProfile(nil, nil, []float64{0, 1, 1})
	assert.Error(t, err)

	_, err = NewProfile(make([]float64, 9), nil, nil)
	assert.Error(t, err, "all-zero ColorMatrix cannot be inverted")

	p, err := NewProfile(nil, nil, nil)
	require.NoError(t, err)
	cn := NewCameraNative(0.1, 0.2, 0.3)
	assert.Equal(t, cn, p.DevelopDNG(cn), "empty profile is a no-op")
}

func TestDevelopFloorsNegatives(t *testing.T) {
	p := Profile{HasMatrix: true, CameraToSRGB: emath.Mat3{1, -1, 0, 0, 1, 0, 0, 0, 1}}
	out := p.DevelopDNG(NewCameraNative(0.1, 0.5, 0.2))
	assert.Equal(t, 0.0, out.R)
	assert.Equal(t, 0.5, out.G)
}
