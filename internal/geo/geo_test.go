package geo

import (
	"math"
	"testing"

	"carpool/internal/types"
)

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 30.0444, Lng: 31.2357},
			b:         types.Point{Lat: 30.0444, Lng: 31.2357},
			wantKm:    0,
			tolerance: 0.0001,
		},
		{
			name:      "Cairo to Alexandria (~180km)",
			a:         types.Point{Lat: 30.0444, Lng: 31.2357},
			b:         types.Point{Lat: 31.2001, Lng: 29.9187},
			wantKm:    180,
			tolerance: 10,
		},
		{
			name:      "one degree of latitude (~111km)",
			a:         types.Point{Lat: 0, Lng: 0},
			b:         types.Point{Lat: 1, Lng: 0},
			wantKm:    111.19,
			tolerance: 0.2,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceKm_Symmetry(t *testing.T) {
	a := types.Point{Lat: 25.0, Lng: 121.0}
	b := types.Point{Lat: 26.0, Lng: 122.0}
	d1 := DistanceKm(a, b)
	d2 := DistanceKm(b, a)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("distance is not symmetric: %f vs %f", d1, d2)
	}
}

func TestNearestPoint_MinimizesDistance(t *testing.T) {
	path := []types.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.5},
		{Lat: 0, Lng: 1},
		{Lat: 0.2, Lng: 0.7},
	}
	target := types.Point{Lat: 0.1, Lng: 0.6}

	got := NearestPoint(path, target)
	best := DistanceKm(target, got)
	for _, p := range path {
		if DistanceKm(target, p) < best {
			t.Fatalf("waypoint %v is closer than NearestPoint result %v", p, got)
		}
	}
}

func TestNearestPoint_TieBreaksFirst(t *testing.T) {
	// Two waypoints equidistant from the target; the first must win.
	path := []types.Point{
		{Lat: 0, Lng: -1},
		{Lat: 0, Lng: 1},
	}
	got := NearestPoint(path, types.Point{Lat: 0, Lng: 0})
	if got != path[0] {
		t.Errorf("expected first waypoint on tie, got %v", got)
	}
}

func TestNearestPoint_EmptyPathFallsBack(t *testing.T) {
	target := types.Point{Lat: 12.34, Lng: 56.78}
	if got := NearestPoint(nil, target); got != target {
		t.Errorf("expected target fallback for empty path, got %v", got)
	}
}

func TestCorridor_PickupWithinDropoffOutside(t *testing.T) {
	// Straight line of waypoints from (0,0) to (0,1) degrees.
	var path []types.Point
	for i := 0; i <= 10; i++ {
		path = append(path, types.Point{Lat: 0, Lng: float64(i) / 10})
	}
	c := NewCorridor(path)

	pickup := types.Point{Lat: 0, Lng: 0.0001}
	if !c.IsWithin(pickup, 1.5) {
		t.Errorf("pickup %v should be within 1.5km of corridor", pickup)
	}

	dropoff := types.Point{Lat: 5, Lng: 5}
	if c.IsWithin(dropoff, 3.0) {
		t.Errorf("dropoff %v should not be within 3km of corridor", dropoff)
	}
}

func TestCorridor_Snap(t *testing.T) {
	c := NewCorridor([]types.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
	})
	got := c.Snap(types.Point{Lat: 0.01, Lng: 0.9})
	if got != (types.Point{Lat: 0, Lng: 1}) {
		t.Errorf("Snap() = %v, want {0 1}", got)
	}
}
