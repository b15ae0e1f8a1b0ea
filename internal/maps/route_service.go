package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"carpool/internal/types"
)

// ErrLookupUnavailable reports that the external maps collaborator failed.
// Callers decide whether the lookup is load-bearing or can be degraded.
var ErrLookupUnavailable = errors.New("maps lookup unavailable")

// Route is the directions result consumed by route registration.
type Route struct {
	Waypoints       []types.Point
	DistanceKm      float64
	DurationMinutes int
	Polyline        string
}

// RouteService fetches driving directions from the Google Maps API.
type RouteService struct {
	client   *maps.Client
	language string
	region   string
}

func NewRouteService(apiKey, language, region string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client, language: language, region: region}, nil
}

// GetRoute returns the driving route from origin to destination. The waypoint
// list is each step's start location plus the final step's end location.
func (s *RouteService) GetRoute(ctx context.Context, origin, destination types.Point) (Route, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		Mode:        maps.TravelModeDriving,
		Language:    s.language,
		Region:      s.region,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, fmt.Errorf("%w: no route found", ErrLookupUnavailable)
	}

	leg := routes[0].Legs[0]
	out := Route{
		DistanceKm:      float64(leg.Distance.Meters) / 1000.0,
		DurationMinutes: int(leg.Duration.Minutes()),
		Polyline:        routes[0].OverviewPolyline.Points,
	}
	for _, step := range leg.Steps {
		out.Waypoints = append(out.Waypoints, types.Point{
			Lat: step.StartLocation.Lat,
			Lng: step.StartLocation.Lng,
		})
	}
	if n := len(leg.Steps); n > 0 {
		last := leg.Steps[n-1]
		out.Waypoints = append(out.Waypoints, types.Point{
			Lat: last.EndLocation.Lat,
			Lng: last.EndLocation.Lng,
		})
	}
	return out, nil
}
