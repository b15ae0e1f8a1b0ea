package pricing

import (
	"math"
	"testing"
)

func TestSegmentFare(t *testing.T) {
	tests := []struct {
		name      string
		routeKm   float64
		price     float64
		segmentKm float64
		want      float64
	}{
		{
			name:    "route price 100 over 50km, 10km segment",
			routeKm: 50, price: 100, segmentKm: 10,
			want: 20.0,
		},
		{
			name:    "full segment pays full price",
			routeKm: 50, price: 100, segmentKm: 50,
			want: 100.0,
		},
		{
			name:    "zero route distance yields zero fare",
			routeKm: 0, price: 100, segmentKm: 10,
			want: 0,
		},
		{
			name:    "zero segment yields zero fare",
			routeKm: 50, price: 100, segmentKm: 0,
			want: 0,
		},
		{
			name:    "rounded to one decimal",
			routeKm: 3, price: 10, segmentKm: 1, // 3.333... -> 3.3
			want: 3.3,
		},
		{
			name:    "rounds half up",
			routeKm: 4, price: 10, segmentKm: 1, // 2.5 -> 2.5 exactly
			want: 2.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SegmentFare(tt.routeKm, tt.price, tt.segmentKm)
			if got != tt.want {
				t.Errorf("SegmentFare(%v, %v, %v) = %v, want %v",
					tt.routeKm, tt.price, tt.segmentKm, got, tt.want)
			}
		})
	}
}

// TestSegmentFare_Linearity verifies the fare scales linearly with segment
// distance for a fixed price/distance ratio.
func TestSegmentFare_Linearity(t *testing.T) {
	const routeKm, price = 100.0, 200.0
	base := SegmentFare(routeKm, price, 5)
	for _, mult := range []float64{2, 3, 4} {
		got := SegmentFare(routeKm, price, 5*mult)
		if math.Abs(got-base*mult) > 0.1 {
			t.Errorf("fare for %vx distance = %v, want ~%v", mult, got, base*mult)
		}
	}
}

func TestActualFare(t *testing.T) {
	if got := ActualFare(30, 50); got != 50 {
		t.Errorf("ActualFare(30, 50) = %v, want 50", got)
	}
	if got := ActualFare(80, 50); got != 80 {
		t.Errorf("ActualFare(80, 50) = %v, want 80", got)
	}
	if got := ActualFare(0, 0); got != 0 {
		t.Errorf("ActualFare(0, 0) = %v, want 0", got)
	}
}
