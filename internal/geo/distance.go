// Package geo holds the geodesic helpers shared by clustering and filtering.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// Position is a WGS 84 coordinate in decimal degrees.
type Position struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Valid reports whether the position is finite and inside the WGS 84 ranges.
func (p Position) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Point converts the position to an orb point (lon, lat order).
func (p Position) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// DistanceKm returns the great-circle distance between a and b using the
// Haversine formula.
func DistanceKm(a, b Position) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h a hair past 1 for antipodal points.
	if h > 1 {
		h = 1
	}

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// BoundAround returns a bounding box that contains every point within
// radiusKm of center. It is padded slightly so that it never excludes a
// point DistanceKm would accept; callers still confirm with DistanceKm.
func BoundAround(center Position, radiusKm float64) orb.Bound {
	// orb/geo uses a slightly larger Earth radius, hence the pad.
	meters := radiusKm * 1000 * 1.01
	return orbgeo.NewBoundAroundPoint(center.Point(), meters)
}

// Within reports whether b lies within radiusKm of a.
func Within(a, b Position, radiusKm float64) bool {
	bound := BoundAround(a, radiusKm)
	if usableBound(bound) && !bound.Contains(b.Point()) {
		return false
	}
	return DistanceKm(a, b) <= radiusKm
}

// usableBound rejects boxes that wrap the antimeridian or touch a pole,
// where a plain min/max containment test is wrong.
func usableBound(b orb.Bound) bool {
	if b.Min[0] > b.Max[0] {
		return false
	}
	return b.Min[0] > -180 && b.Max[0] < 180 && b.Min[1] > -90 && b.Max[1] < 90
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
