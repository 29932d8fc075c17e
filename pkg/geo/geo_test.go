package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineIdentity(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{12.97, 77.59},
		{-33.86, 151.21},
		{89.9, -179.9},
	}

	for _, p := range points {
		assert.Equal(t, 0.0, HaversineKm(p[0], p[1], p[0], p[1]))
	}
}

func TestHaversineSymmetry(t *testing.T) {
	d1 := HaversineKm(9.93, 76.26, 13.08, 80.27)
	d2 := HaversineKm(13.08, 80.27, 9.93, 76.26)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Kochi to Chennai, roughly 550-560 km great-circle.
	d := HaversineKm(9.93, 76.26, 13.08, 80.27)
	assert.InDelta(t, 555, d, 15)
}

func TestHaversineDegreeOfLatitude(t *testing.T) {
	// One degree of latitude is ~111.2 km at this radius.
	d := HaversineKm(10, 70, 11, 70)
	assert.InDelta(t, 111.2, d, 0.2)
}

func TestAngularDiffDeg(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{10, 350, 20},
		{350, 10, 20},
		{0, 180, 180},
		{0, 0, 0},
		{90, 270, 180},
		{359, 1, 2},
		{45, 45, 0},
	}

	for _, tt := range tests {
		got := AngularDiffDeg(tt.a, tt.b)
		assert.InDelta(t, tt.want, got, 1e-9, "AngularDiffDeg(%v, %v)", tt.a, tt.b)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 180.0)

		// Symmetry.
		assert.InDelta(t, got, AngularDiffDeg(tt.b, tt.a), 1e-9)
	}
}

func TestBearingDeg(t *testing.T) {
	// Due north and due east along the equator.
	assert.InDelta(t, 0, BearingDeg(0, 0, 1, 0), 1e-6)
	assert.InDelta(t, 90, BearingDeg(0, 0, 0, 1), 1e-6)
	assert.InDelta(t, 180, BearingDeg(1, 0, 0, 0), 1e-6)
	assert.InDelta(t, 270, BearingDeg(0, 1, 0, 0), 1e-6)
}

func TestBBoxContains(t *testing.T) {
	// Indian EEZ approximate box.
	box := BBox{MinLat: 6, MinLon: 68, MaxLat: 22, MaxLon: 88}

	assert.True(t, box.Contains(10, 75))
	assert.True(t, box.Contains(6, 68))   // inclusive lower bound
	assert.True(t, box.Contains(22, 88))  // inclusive upper bound
	assert.False(t, box.Contains(25, 75)) // north of box
	assert.False(t, box.Contains(10, 60)) // west of box
	assert.False(t, BBox{}.Contains(10, 75))
}
