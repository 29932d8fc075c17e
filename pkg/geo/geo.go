// Package geo provides great-circle geometry used by the feature extractors.
package geo

import "math"

const (
	// EarthRadiusKm is the mean Earth radius used for the spherical
	// distance approximation.
	EarthRadiusKm = 6371.0

	// KnotsToKmh converts speed over ground from knots to km/h.
	KnotsToKmh = 1.852
)

// HaversineKm returns the great-circle distance in kilometres between two
// points given in decimal degrees. Inputs must be finite; non-finite
// coordinates are expected to be dropped or imputed upstream.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Asin(math.Min(1, math.Sqrt(a)))

	return EarthRadiusKm * c
}

// BearingDeg returns the initial bearing in degrees [0, 360) from the first
// point to the second.
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dlon) * math.Cos(rlat2)
	x := math.Cos(rlat1)*math.Sin(rlat2) - math.Sin(rlat1)*math.Cos(rlat2)*math.Cos(dlon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// AngularDiffDeg returns the minimum rotational difference between two
// angles in degrees, always in [0, 180]. Handles wraparound at 0/360.
func AngularDiffDeg(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// BBox is a latitude/longitude bounding box.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the point lies within the box, bounds inclusive.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// IsZero reports whether the box is the zero value.
func (b BBox) IsZero() bool {
	return b == BBox{}
}
