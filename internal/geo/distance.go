// Package geo computes great-circle distances between WGS84 coordinates.
package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"github.com/pkordes/ride-dispatch/internal/domain"
)

// EarthRadiusKM is the mean Earth radius used by Distance.
const EarthRadiusKM = 6371.0

// Distance returns the haversine great-circle distance in kilometres between
// a and b, both in degrees. Identical points yield exactly 0.
func Distance(a, b domain.Coordinate) float64 {
	if a == b {
		return 0
	}
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)

	// Rounding can push h a hair outside [0,1] for antipodal or near-pole
	// points, which would make Asin return NaN.
	h = math.Max(0, math.Min(1, h))

	return 2 * EarthRadiusKM * math.Asin(math.Sqrt(h))
}

// Valid reports whether c is finite and inside the latitude/longitude ranges.
func Valid(c domain.Coordinate) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Cell returns the geohash of c at the given precision. Logs and traces use it
// to identify an area without recording the raw coordinate.
func Cell(c domain.Coordinate, precision uint) string {
	return geohash.EncodeWithPrecision(c.Lat, c.Lon, precision)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
