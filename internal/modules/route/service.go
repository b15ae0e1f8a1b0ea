// README: Route service implements registration, seat allocation, and the trip lifecycle.
package route

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"carpool/internal/maps"
	"carpool/internal/notify"
	"carpool/internal/types"
)

var (
	ErrNotFound          = errors.New("route not found")
	ErrBadRequest        = errors.New("bad request")
	ErrAlreadyStarted    = errors.New("trip already started")
	ErrUnauthorized      = errors.New("not the route owner")
	ErrInsufficientSeats = errors.New("not enough seats available")
	ErrRouteClosed       = errors.New("route already ended")
)

// Repository is the route persistence contract. ReserveSeats and ReleaseSeats
// are the only seat mutators in the system; implementations must serialize
// them per route so concurrent reservations never overbook.
type Repository interface {
	Create(ctx context.Context, r *Route) error
	Get(ctx context.Context, id types.ID) (*Route, error)
	GetWithDriver(ctx context.Context, id types.ID) (*Candidate, error)
	ListByDay(ctx context.Context, day time.Time, f CandidateFilter) ([]Candidate, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Route, error)
	MarkStarted(ctx context.Context, id types.ID) (bool, error)
	MarkEnded(ctx context.Context, id types.ID) (bool, error)
	ReserveSeats(ctx context.Context, id types.ID, n int) error
	ReleaseSeats(ctx context.Context, id types.ID, n int) error
}

// DirectionsProvider supplies the planned path for a registered route.
type DirectionsProvider interface {
	GetRoute(ctx context.Context, origin, destination types.Point) (maps.Route, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

type Notifier interface {
	Push(ctx context.Context, users []types.ID, ev notify.Event)
}

// AcceptFailure records a booking that could not be confirmed during the
// bulk-accept on trip start.
type AcceptFailure struct {
	BookingID types.ID
	Err       error
}

// BookingDirectory is implemented by the booking service; the route lifecycle
// uses it to confirm queued join requests and to find affected riders.
type BookingDirectory interface {
	AcceptPending(ctx context.Context, routeID types.ID) (riders []types.ID, failures []AcceptFailure, err error)
	AcceptedRiders(ctx context.Context, routeID types.ID) ([]types.ID, error)
}

type Service struct {
	store      Repository
	directions DirectionsProvider
	geocoder   Geocoder
	notifier   Notifier
	bookings   BookingDirectory
}

func NewService(store Repository, directions DirectionsProvider, geocoder Geocoder, notifier Notifier, bookings BookingDirectory) *Service {
	return &Service{
		store:      store,
		directions: directions,
		geocoder:   geocoder,
		notifier:   notifier,
		bookings:   bookings,
	}
}

type RegisterCommand struct {
	DriverID      types.ID
	VehicleID     *types.ID
	Start         types.Point
	End           types.Point
	StartTime     time.Time
	Price         float64
	Seats         int
	RideType      string
	AllowedGender string
	AgeMin        *int
	AgeMax        *int
	Prefs         Preferences
	RestStops     []RestStop
}

// Register publishes a driver route. The directions lookup is load-bearing:
// without a planned path there is no corridor to match against, so the
// external failure is surfaced rather than degraded.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (types.ID, error) {
	if cmd.DriverID == "" || cmd.StartTime.IsZero() || cmd.Price < 0 {
		return "", ErrBadRequest
	}
	if cmd.Seats < 1 || cmd.Seats > 8 {
		return "", ErrBadRequest
	}
	if cmd.AllowedGender == "" {
		cmd.AllowedGender = GenderBoth
	}
	switch cmd.AllowedGender {
	case GenderMale, GenderFemale, GenderBoth:
	default:
		return "", ErrBadRequest
	}
	if cmd.AgeMin != nil && cmd.AgeMax != nil && *cmd.AgeMin > *cmd.AgeMax {
		return "", ErrBadRequest
	}

	dir, err := s.directions.GetRoute(ctx, cmd.Start, cmd.End)
	if err != nil {
		return "", err
	}

	eta := cmd.StartTime.Add(time.Duration(dir.DurationMinutes) * time.Minute)
	r := &Route{
		ID:               newID(),
		DriverID:         cmd.DriverID,
		VehicleID:        cmd.VehicleID,
		Start:            cmd.Start,
		End:              cmd.End,
		StartAddress:     s.address(ctx, cmd.Start),
		EndAddress:       s.address(ctx, cmd.End),
		Waypoints:        dir.Waypoints,
		RestStops:        cmd.RestStops,
		Polyline:         dir.Polyline,
		StartTime:        cmd.StartTime,
		EstimatedEndTime: &eta,
		Price:            cmd.Price,
		SeatsTotal:       cmd.Seats,
		SeatsAvailable:   cmd.Seats,
		RideType:         cmd.RideType,
		AllowedGender:    cmd.AllowedGender,
		AgeMin:           cmd.AgeMin,
		AgeMax:           cmd.AgeMax,
		Prefs:            cmd.Prefs,
		CreatedAt:        time.Now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

type StartResult struct {
	StartedAt time.Time
	Accepted  []types.ID
	Failures  []AcceptFailure
}

// StartTrip moves a scheduled route to started and confirms every queued join
// request in bulk. Per-booking failures are logged and reported back, but
// never abort the batch or the route transition itself.
func (s *Service) StartTrip(ctx context.Context, routeID, driverID types.ID) (StartResult, error) {
	r, err := s.store.Get(ctx, routeID)
	if err != nil {
		return StartResult{}, err
	}
	if r.DriverID != driverID {
		return StartResult{}, ErrUnauthorized
	}
	if r.TripStarted {
		return StartResult{}, ErrAlreadyStarted
	}
	ok, err := s.store.MarkStarted(ctx, routeID)
	if err != nil {
		return StartResult{}, err
	}
	if !ok {
		// Lost the race against a concurrent start.
		return StartResult{}, ErrAlreadyStarted
	}

	riders, failures, err := s.bookings.AcceptPending(ctx, routeID)
	if err != nil {
		log.Printf("route: enumerate pending bookings for %s: %v", routeID, err)
	}
	for _, f := range failures {
		log.Printf("route: accept booking %s on start of %s: %v", f.BookingID, routeID, f.Err)
	}
	if s.notifier != nil && len(riders) > 0 {
		s.notifier.Push(ctx, riders, notify.Event{
			Title:  "The Trip Has Started",
			Body:   "The driver has started the trip.",
			Action: "carpooling_trip_started",
			Data:   map[string]string{"route_id": string(routeID)},
		})
	}
	return StartResult{StartedAt: time.Now(), Accepted: riders, Failures: failures}, nil
}

// EndTrip stamps the route's end time and notifies accepted riders. Active
// bookings are not transitioned automatically.
func (s *Service) EndTrip(ctx context.Context, routeID, driverID types.ID) error {
	r, err := s.store.Get(ctx, routeID)
	if err != nil {
		return err
	}
	if r.DriverID != driverID {
		return ErrUnauthorized
	}
	ok, err := s.store.MarkEnded(ctx, routeID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	riders, err := s.bookings.AcceptedRiders(ctx, routeID)
	if err != nil {
		log.Printf("route: list accepted riders for %s: %v", routeID, err)
		return nil
	}
	if s.notifier != nil && len(riders) > 0 {
		s.notifier.Push(ctx, riders, notify.Event{
			Title:  "The Trip Has Been Ended",
			Body:   "The driver has ended the trip.",
			Action: "carpooling_trip_ended",
			Data:   map[string]string{"route_id": string(routeID)},
		})
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Route, error) {
	return s.store.Get(ctx, id)
}

// Schedule lists the driver's routes ordered by start time.
func (s *Service) Schedule(ctx context.Context, driverID types.ID) ([]*Route, error) {
	if driverID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListByDriver(ctx, driverID)
}

func (s *Service) address(ctx context.Context, p types.Point) string {
	if s.geocoder == nil {
		return ""
	}
	addr, err := s.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		log.Printf("route: reverse geocode (%f,%f): %v", p.Lat, p.Lng, err)
		return ""
	}
	return addr
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
