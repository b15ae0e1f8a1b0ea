// README: Carpool route aggregate, preferences, and flattened match candidates.
package route

import (
	"time"

	"carpool/internal/types"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderBoth   = "both"
)

// DefaultCategory labels routes whose vehicle has no category.
const DefaultCategory = "uncategorized"

// Preferences are the comfort flags a driver advertises for the ride.
type Preferences struct {
	AC                  bool
	SmokingAllowed      bool
	Music               bool
	ScreenEntertainment bool
	LuggageAllowed      bool
}

// RestStop is an optional stop the driver plans along the way.
type RestStop struct {
	Point types.Point
	Name  string
}

type Route struct {
	ID               types.ID
	DriverID         types.ID
	VehicleID        *types.ID
	Start            types.Point
	End              types.Point
	StartAddress     string
	EndAddress       string
	Waypoints        []types.Point
	RestStops        []RestStop
	Polyline         string
	StartTime        time.Time
	EstimatedEndTime *time.Time
	Price            float64
	SeatsTotal       int
	SeatsAvailable   int
	RideType         string
	AllowedGender    string
	AgeMin           *int
	AgeMax           *int
	Prefs            Preferences
	TripStarted      bool
	TripStartedAt    *time.Time
	EndTime          *time.Time
	CreatedAt        time.Time
}

// CorridorPoints is the planned path extended with rest stops, in the order
// corridor queries expect: base waypoints first, rest stops appended.
func (r *Route) CorridorPoints() []types.Point {
	pts := make([]types.Point, 0, len(r.Waypoints)+len(r.RestStops))
	pts = append(pts, r.Waypoints...)
	for _, s := range r.RestStops {
		pts = append(pts, s.Point)
	}
	return pts
}

// Closed reports whether the route has been retired; closed routes accept no
// further bookings.
func (r *Route) Closed() bool {
	return r.EndTime != nil
}

// DriverSummary and VehicleSummary are flattened repository DTOs; the core
// never holds live object-graph references.
type DriverSummary struct {
	ID           types.ID
	FullName     string
	Gender       string
	ProfileImage string
}

type VehicleSummary struct {
	Brand       string
	Model       string
	PlateNumber string
	Category    string
}

// Candidate is a route joined with its driver and vehicle summaries, as
// returned by the day-filtered candidate query.
type Candidate struct {
	Route   Route
	Driver  DriverSummary
	Vehicle VehicleSummary
}

// CandidateFilter carries the cheap scalar filters the repository applies
// before any geometry is evaluated.
type CandidateFilter struct {
	RideType      string
	Gender        string
	SeatsRequired int
}
