package geo

import "carpool/internal/types"

// Corridor is the tolerance region around a route's waypoint path. The
// waypoints are the planned path plus any rest stops appended at the end; no
// geometric ordering is guaranteed or required by the queries below.
type Corridor struct {
	waypoints []types.Point
}

func NewCorridor(waypoints []types.Point) Corridor {
	return Corridor{waypoints: waypoints}
}

// IsWithin reports whether any corridor waypoint lies within maxKm of target.
func (c Corridor) IsWithin(target types.Point, maxKm float64) bool {
	for _, p := range c.waypoints {
		if DistanceKm(target, p) <= maxKm {
			return true
		}
	}
	return false
}

// Snap projects target onto the nearest corridor waypoint.
func (c Corridor) Snap(target types.Point) types.Point {
	return NearestPoint(c.waypoints, target)
}
