// README: Pricing computes proportional segment fares for carpool routes.
package pricing

import "math"

// SegmentFare derives the fare for a sub-segment of a route from the route's
// advertised total price. The price is assumed to scale linearly with distance;
// time-of-day and demand factors are deliberately ignored by this model.
// A zero-distance route yields a zero fare.
func SegmentFare(routeDistanceKm, routePrice, segmentDistanceKm float64) float64 {
	if routeDistanceKm <= 0 {
		return 0
	}
	pricePerKm := routePrice / routeDistanceKm
	return round1(segmentDistanceKm * pricePerKm)
}

// ActualFare is the fare charged for a booking: the offered amount, floored at
// the route's minimum fare.
func ActualFare(offered, minFare float64) float64 {
	return math.Max(offered, minFare)
}

// round1 rounds to one decimal place, matching the advertised fare precision.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
