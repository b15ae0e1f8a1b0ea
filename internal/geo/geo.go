// Package geo contains pure geographic computation helpers.
package geo

import (
	"math"

	"carpool/internal/types"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func DistanceKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// NearestPoint returns the waypoint of path closest to target. Ties go to the
// earliest waypoint. An empty path falls back to target itself.
func NearestPoint(path []types.Point, target types.Point) types.Point {
	closest := target
	minDist := math.Inf(1)
	for _, p := range path {
		if d := DistanceKm(target, p); d < minDist {
			minDist = d
			closest = p
		}
	}
	return closest
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
