// README: Match engine: corridor proximity, preference filters, and per-match fare quotes.
package matching

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"carpool/internal/config"
	"carpool/internal/geo"
	"carpool/internal/modules/pricing"
	"carpool/internal/modules/route"
	"carpool/internal/types"
)

var ErrBadRequest = errors.New("bad request")

// RouteSource supplies the day's candidate routes, already filtered on the
// cheap scalar criteria. Geometry stays here.
type RouteSource interface {
	ListByDay(ctx context.Context, day time.Time, f route.CandidateFilter) ([]route.Candidate, error)
	Get(ctx context.Context, id types.ID) (*route.Route, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

// Query is a rider's search for a ride.
type Query struct {
	Pickup   types.Point
	Dropoff  types.Point
	Day      time.Time
	RideType string
	Gender   string
	Category string
	Seats    int
}

// Match is one route the rider can join, with the pickup and dropoff snapped
// onto the driver's path and the fare quoted for that segment.
type Match struct {
	Route          route.Route
	Driver         route.DriverSummary
	Vehicle        route.VehicleSummary
	Pickup         types.Point
	Dropoff        types.Point
	PickupAddress  string
	DropoffAddress string
	SegmentKm      float64
	Fare           float64
}

type Service struct {
	routes   RouteSource
	geocoder Geocoder
	cfg      config.MatchingConfig
}

func NewService(routes RouteSource, geocoder Geocoder, cfg config.MatchingConfig) *Service {
	return &Service{routes: routes, geocoder: geocoder, cfg: cfg}
}

// Find returns every route of the day whose corridor passes close enough to
// both the rider's pickup and dropoff. The pickup radius is tighter than the
// dropoff radius: riders walk to the car but tolerate a longer last leg.
func (s *Service) Find(ctx context.Context, q Query) ([]Match, error) {
	if q.Day.IsZero() {
		return nil, ErrBadRequest
	}
	candidates, err := s.routes.ListByDay(ctx, q.Day, route.CandidateFilter{
		RideType:      q.RideType,
		Gender:        q.Gender,
		SeatsRequired: q.Seats,
	})
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, c := range candidates {
		if !categoryMatches(q.Category, c.Vehicle.Category) {
			continue
		}
		corridor := geo.NewCorridor(c.Route.CorridorPoints())
		if !corridor.IsWithin(q.Pickup, s.cfg.PickupRadiusKm) {
			continue
		}
		if !corridor.IsWithin(q.Dropoff, s.cfg.DropoffRadiusKm) {
			continue
		}

		pickup := corridor.Snap(q.Pickup)
		dropoff := corridor.Snap(q.Dropoff)
		routeKm := geo.DistanceKm(c.Route.Start, c.Route.End)
		segmentKm := geo.DistanceKm(pickup, dropoff)

		out = append(out, Match{
			Route:          c.Route,
			Driver:         c.Driver,
			Vehicle:        c.Vehicle,
			Pickup:         pickup,
			Dropoff:        dropoff,
			PickupAddress:  s.address(ctx, pickup),
			DropoffAddress: s.address(ctx, dropoff),
			SegmentKm:      segmentKm,
			Fare:           pricing.SegmentFare(routeKm, c.Route.Price, segmentKm),
		})
	}
	return out, nil
}

// SuggestDropoff proposes the point on a route's path nearest to where the
// rider wants to end up, if it is within the suggestion radius.
func (s *Service) SuggestDropoff(ctx context.Context, routeID types.ID, target types.Point) (types.Point, bool, error) {
	r, err := s.routes.Get(ctx, routeID)
	if err != nil {
		return types.Point{}, false, err
	}
	corridor := geo.NewCorridor(r.CorridorPoints())
	if !corridor.IsWithin(target, s.cfg.SuggestRadiusKm) {
		return types.Point{}, false, nil
	}
	return corridor.Snap(target), true, nil
}

// categoryMatches compares vehicle categories case-insensitively; an empty or
// "all" preference matches anything.
func categoryMatches(wanted, actual string) bool {
	if wanted == "" || strings.EqualFold(wanted, "all") {
		return true
	}
	if actual == "" {
		actual = route.DefaultCategory
	}
	return strings.EqualFold(wanted, actual)
}

func (s *Service) address(ctx context.Context, p types.Point) string {
	if s.geocoder == nil {
		return ""
	}
	addr, err := s.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		log.Printf("matching: reverse geocode (%f,%f): %v", p.Lat, p.Lng, err)
		return ""
	}
	return addr
}
