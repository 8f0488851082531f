package domain

import (
	"fmt"
	"math"
)

// earthRadiusM is the mean Earth radius used for great-circle distances.
const earthRadiusM = 6371000.0

// Box is a latitude/longitude bounding box. The edge fields follow the
// delta-sign convention of BoundingBox: West holds lon+deltaLon and East holds
// lon-deltaLon, so for a western-hemisphere center West is numerically the
// greater longitude. Consumers that need geographic min/max edges (the NOAA
// query builder does) order them explicitly.
type Box struct {
	North float64
	West  float64
	South float64
	East  float64
}

// BoundingBox computes a box of deltaLat degrees of latitude and deltaLon
// degrees of longitude around a center point, saturating at the poles and the
// anti-meridian. The clamp is asymmetric: when |lat|+deltaLat crosses 90 the
// near edge pins to 90*sign(lat) and the far edge becomes (|lat|-deltaLat)
// signed consistently, and likewise for longitude at 180. sign(0) is +1.
//
// Deltas must be non-negative finite numbers; anything else is rejected with
// ErrInvalidArgument.
func BoundingBox(lat, lon, deltaLat, deltaLon float64) (Box, error) {
	if deltaLat < 0 || math.IsNaN(deltaLat) || math.IsInf(deltaLat, 0) {
		return Box{}, fmt.Errorf("%w: deltaLat %v", ErrInvalidArgument, deltaLat)
	}
	if deltaLon < 0 || math.IsNaN(deltaLon) || math.IsInf(deltaLon, 0) {
		return Box{}, fmt.Errorf("%w: deltaLon %v", ErrInvalidArgument, deltaLon)
	}

	var b Box
	if math.Abs(lat)+deltaLat >= 90.0 {
		b.North = 90.0 * sign(lat)
		b.South = (math.Abs(lat) - deltaLat) * sign(lat)
	} else {
		b.North = lat + deltaLat
		b.South = lat - deltaLat
	}

	if math.Abs(lon)+deltaLon >= 180.0 {
		b.West = 180.0 * sign(lon)
		b.East = (math.Abs(lon) - deltaLon) * sign(lon)
	} else {
		b.West = lon + deltaLon
		b.East = lon - deltaLon
	}

	return b, nil
}

// sign returns -1 for negative values and +1 otherwise. Zero maps to +1 so a
// box centered on the equator or prime meridian saturates northward/eastward.
func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// HaversineDistance returns the great-circle distance in meters between two
// coordinate pairs.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}
