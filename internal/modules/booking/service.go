// README: Booking service: join requests, driver review, OTP handoff, and the ride state machine.
package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"carpool/internal/geo"
	"carpool/internal/modules/pricing"
	"carpool/internal/modules/route"
	"carpool/internal/notify"
	"carpool/internal/types"
)

var (
	ErrNotFound        = errors.New("booking not found")
	ErrBadRequest      = errors.New("bad request")
	ErrInvalidState    = errors.New("invalid booking state for this operation")
	ErrConflict        = errors.New("booking changed concurrently")
	ErrOtpMismatch     = errors.New("otp does not match")
	ErrAlreadyReviewed = errors.New("join request already reviewed")
	ErrUnauthorized    = errors.New("not allowed on this booking")
)

// Repository is the booking persistence contract. UpdateStatus and
// UpdateDecision are compare-and-swap: they apply only when the stored value
// still equals the expected one, and report whether they did.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	GetPassenger(ctx context.Context, id types.ID) (*Passenger, error)
	ListByRoute(ctx context.Context, routeID types.ID, decision string) ([]Passenger, error)
	ListByRider(ctx context.Context, riderID types.ID) ([]*Booking, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to string) (bool, error)
	UpdateDecision(ctx context.Context, id types.ID, from, to string) (bool, error)
	MarkSeatsReleased(ctx context.Context, id types.ID) (bool, error)
	AppendEvent(ctx context.Context, ev Event) error
	ListEvents(ctx context.Context, bookingID types.ID) ([]Event, error)
}

// RouteDirectory is the slice of the route module bookings depend on. The
// route store's conditional seat updates are the only seat mutators, so every
// reservation and release goes through here.
type RouteDirectory interface {
	Get(ctx context.Context, id types.ID) (*route.Route, error)
	GetWithDriver(ctx context.Context, id types.ID) (*route.Candidate, error)
	ReserveSeats(ctx context.Context, id types.ID, n int) error
	ReleaseSeats(ctx context.Context, id types.ID, n int) error
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

type Notifier interface {
	Push(ctx context.Context, users []types.ID, ev notify.Event)
}

type Service struct {
	store    Repository
	routes   RouteDirectory
	geocoder Geocoder
	notifier Notifier
}

func NewService(store Repository, routes RouteDirectory, geocoder Geocoder, notifier Notifier) *Service {
	return &Service{store: store, routes: routes, geocoder: geocoder, notifier: notifier}
}

type JoinCommand struct {
	RouteID types.ID
	RiderID types.ID
	Pickup  types.Point
	Dropoff types.Point
	Seats   int
}

// Join reserves seats on a route and files a pending join request. Seats are
// taken up front so a slow driver review can never oversell the car; a
// rejection or cancellation gives them back.
func (s *Service) Join(ctx context.Context, cmd JoinCommand) (*Booking, error) {
	if cmd.RouteID == "" || cmd.RiderID == "" {
		return nil, ErrBadRequest
	}
	if cmd.Seats < 1 {
		cmd.Seats = 1
	}
	if cmd.Seats > 8 {
		return nil, ErrBadRequest
	}
	r, err := s.routes.Get(ctx, cmd.RouteID)
	if err != nil {
		return nil, err
	}
	if r.Closed() {
		return nil, route.ErrRouteClosed
	}
	if r.DriverID == cmd.RiderID {
		return nil, ErrBadRequest
	}

	if err := s.routes.ReserveSeats(ctx, cmd.RouteID, cmd.Seats); err != nil {
		return nil, err
	}

	corridor := geo.NewCorridor(r.CorridorPoints())
	snappedPickup := corridor.Snap(cmd.Pickup)
	snappedDropoff := corridor.Snap(cmd.Dropoff)
	routeKm := geo.DistanceKm(r.Start, r.End)
	segmentKm := geo.DistanceKm(snappedPickup, snappedDropoff)

	b := &Booking{
		ID:             newID(),
		RouteID:        cmd.RouteID,
		RiderID:        cmd.RiderID,
		Pickup:         cmd.Pickup,
		Dropoff:        cmd.Dropoff,
		SnappedPickup:  snappedPickup,
		SnappedDropoff: snappedDropoff,
		PickupAddress:  s.address(ctx, snappedPickup),
		DropoffAddress: s.address(ctx, snappedDropoff),
		Seats:          cmd.Seats,
		Fare:           pricing.SegmentFare(routeKm, r.Price, segmentKm),
		Status:         StatusPending,
		Decision:       DecisionPending,
		OTP:            newOTP(),
		CreatedAt:      time.Now(),
	}
	if err := s.store.Create(ctx, b); err != nil {
		// Undo the reservation; the booking row never existed.
		if relErr := s.routes.ReleaseSeats(ctx, cmd.RouteID, cmd.Seats); relErr != nil {
			log.Printf("booking: release seats after failed create on %s: %v", cmd.RouteID, relErr)
		}
		return nil, err
	}
	s.appendEvent(ctx, b.ID, "", StatusPending, cmd.RiderID)

	if s.notifier != nil {
		s.notifier.Push(ctx, []types.ID{r.DriverID}, notify.Event{
			Title:  "New Join Request",
			Body:   "A passenger wants to join your trip.",
			Action: "carpooling_join_request",
			Data:   map[string]string{"route_id": string(cmd.RouteID), "booking_id": string(b.ID)},
		})
	}
	return b, nil
}

// Review records the driver's verdict on a pending join request. Rejection
// returns the reserved seats.
func (s *Service) Review(ctx context.Context, bookingID, driverID types.ID, accept bool) error {
	b, r, err := s.ownedBooking(ctx, bookingID, driverID)
	if err != nil {
		return err
	}
	if b.Decision != DecisionPending {
		return ErrAlreadyReviewed
	}

	decision := DecisionAccepted
	action := "carpooling_request_accepted"
	body := "The driver accepted your join request."
	if !accept {
		decision = DecisionRejected
		action = "carpooling_request_rejected"
		body = "The driver rejected your join request."
	}
	ok, err := s.store.UpdateDecision(ctx, bookingID, DecisionPending, decision)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyReviewed
	}
	if !accept {
		s.releaseSeats(ctx, b)
	}

	if s.notifier != nil {
		s.notifier.Push(ctx, []types.ID{b.RiderID}, notify.Event{
			Title:  "Join Request Reviewed",
			Body:   body,
			Action: action,
			Data:   map[string]string{"route_id": string(r.ID), "booking_id": string(bookingID)},
		})
	}
	return nil
}

// MatchOTP verifies the rider's code at the pickup point and moves the booking
// to waiting. The rider performs the match against their own booking; the code
// comparison is the only gate, so a wrong code always reads as a mismatch.
func (s *Service) MatchOTP(ctx context.Context, bookingID, riderID types.ID, otp string) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.RiderID != riderID {
		return ErrUnauthorized
	}
	if b.OTP != otp {
		return ErrOtpMismatch
	}
	return s.transition(ctx, b, StatusPending, StatusWaiting, riderID)
}

// Onboard marks the rider picked up and stamps the arrival time.
func (s *Service) Onboard(ctx context.Context, bookingID, driverID types.ID) error {
	b, _, err := s.ownedBooking(ctx, bookingID, driverID)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, b, StatusWaiting, StatusOnboard, driverID); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.Push(ctx, []types.ID{b.RiderID}, notify.Event{
			Title:  "Ride Started",
			Body:   "Your ride is on the way.",
			Action: "carpooling_ride_started",
			Data:   map[string]string{"booking_id": string(bookingID)},
		})
	}
	return nil
}

// Drop marks the rider dropped off at their stop. Dropped is terminal and the
// seats stay consumed for the rest of the trip.
func (s *Service) Drop(ctx context.Context, bookingID, driverID types.ID) error {
	b, _, err := s.ownedBooking(ctx, bookingID, driverID)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, StatusOnboard, StatusDropped, driverID)
}

// Cancel lets the rider abandon the booking from any active state and returns
// the seats to the route.
func (s *Service) Cancel(ctx context.Context, bookingID, riderID types.ID) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.RiderID != riderID {
		return ErrUnauthorized
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, bookingID, b.Status, StatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, bookingID, b.Status, StatusCancelled, riderID)
	s.releaseSeats(ctx, b)

	if s.notifier != nil {
		if r, err := s.routes.Get(ctx, b.RouteID); err == nil {
			s.notifier.Push(ctx, []types.ID{r.DriverID}, notify.Event{
				Title:  "Booking Cancelled",
				Body:   "A passenger cancelled their booking.",
				Action: "carpooling_booking_cancelled",
				Data:   map[string]string{"booking_id": string(bookingID)},
			})
		}
	}
	return nil
}

// AcceptPending confirms every still-pending join request when the driver
// starts the trip. Failures are collected per booking so one bad row never
// blocks the rest.
func (s *Service) AcceptPending(ctx context.Context, routeID types.ID) ([]types.ID, []route.AcceptFailure, error) {
	pending, err := s.store.ListByRoute(ctx, routeID, DecisionPending)
	if err != nil {
		return nil, nil, err
	}
	var (
		riders   []types.ID
		failures []route.AcceptFailure
	)
	for _, p := range pending {
		b := p.Booking
		if b.Status != StatusPending {
			continue
		}
		ok, err := s.store.UpdateDecision(ctx, b.ID, DecisionPending, DecisionAccepted)
		if err != nil {
			failures = append(failures, route.AcceptFailure{BookingID: b.ID, Err: err})
			continue
		}
		if !ok {
			failures = append(failures, route.AcceptFailure{BookingID: b.ID, Err: ErrAlreadyReviewed})
			continue
		}
		riders = append(riders, b.RiderID)
	}
	accepted, err := s.AcceptedRiders(ctx, routeID)
	if err != nil {
		// The freshly confirmed riders are still worth notifying.
		return riders, failures, nil
	}
	return accepted, failures, nil
}

// AcceptedRiders lists riders whose bookings are accepted and still active.
func (s *Service) AcceptedRiders(ctx context.Context, routeID types.ID) ([]types.ID, error) {
	ps, err := s.store.ListByRoute(ctx, routeID, DecisionAccepted)
	if err != nil {
		return nil, err
	}
	var out []types.ID
	for _, p := range ps {
		if p.Booking.Active() {
			out = append(out, p.Booking.RiderID)
		}
	}
	return out, nil
}

// RoutePassengers lists the accepted passengers of a route for its driver,
// with pickup and dropoff snapped onto the planned path.
func (s *Service) RoutePassengers(ctx context.Context, routeID, driverID types.ID) ([]Passenger, error) {
	r, err := s.routes.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if r.DriverID != driverID {
		return nil, ErrUnauthorized
	}
	ps, err := s.store.ListByRoute(ctx, routeID, DecisionAccepted)
	if err != nil {
		return nil, err
	}
	out := ps[:0]
	for _, p := range ps {
		if p.Booking.Active() {
			out = append(out, p)
		}
	}
	return out, nil
}

// TripSummary is the rider-facing recap of a booking.
type TripSummary struct {
	Booking Booking
	Route   route.Route
	Driver  route.DriverSummary
	Vehicle route.VehicleSummary
	History []Event
}

// Summary assembles the trip recap for the booking's rider or the route's
// driver.
func (s *Service) Summary(ctx context.Context, bookingID, userID types.ID) (*TripSummary, error) {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	c, err := s.routes.GetWithDriver(ctx, b.RouteID)
	if err != nil {
		return nil, err
	}
	if b.RiderID != userID && c.Route.DriverID != userID {
		return nil, ErrUnauthorized
	}
	events, err := s.store.ListEvents(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return &TripSummary{
		Booking: *b,
		Route:   c.Route,
		Driver:  c.Driver,
		Vehicle: c.Vehicle,
		History: events,
	}, nil
}

// Trips lists the rider's booking history, newest first.
func (s *Service) Trips(ctx context.Context, riderID types.ID) ([]*Booking, error) {
	if riderID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListByRider(ctx, riderID)
}

func (s *Service) ownedBooking(ctx context.Context, bookingID, driverID types.ID) (*Booking, *route.Route, error) {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.routes.Get(ctx, b.RouteID)
	if err != nil {
		return nil, nil, err
	}
	if r.DriverID != driverID {
		return nil, nil, ErrUnauthorized
	}
	return b, r, nil
}

func (s *Service) transition(ctx context.Context, b *Booking, from, to string, actor types.ID) error {
	if b.Status != from {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, b.ID, from, to, actor)
	return nil
}

// releaseSeats gives a booking's seats back to the route exactly once. The
// released flag is flipped with a conditional update, so a rejection racing a
// cancellation credits the seats a single time.
func (s *Service) releaseSeats(ctx context.Context, b *Booking) {
	ok, err := s.store.MarkSeatsReleased(ctx, b.ID)
	if err != nil {
		log.Printf("booking: mark seats released on %s: %v", b.ID, err)
		return
	}
	if !ok {
		return
	}
	if err := s.routes.ReleaseSeats(ctx, b.RouteID, b.Seats); err != nil {
		log.Printf("booking: release %d seats on route %s: %v", b.Seats, b.RouteID, err)
	}
}

func (s *Service) appendEvent(ctx context.Context, bookingID types.ID, from, to string, actor types.ID) {
	ev := Event{
		ID:        newID(),
		BookingID: bookingID,
		From:      from,
		To:        to,
		Actor:     actor,
		At:        time.Now(),
	}
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		log.Printf("booking: append event %s -> %s for %s: %v", from, to, bookingID, err)
	}
}

func (s *Service) address(ctx context.Context, p types.Point) string {
	if s.geocoder == nil {
		return ""
	}
	addr, err := s.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		log.Printf("booking: reverse geocode (%f,%f): %v", p.Lat, p.Lng, err)
		return ""
	}
	return addr
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

// newOTP draws a four digit code in [1000, 9999].
func newOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "1000"
	}
	return fmt.Sprintf("%04d", n.Int64()+1000)
}
