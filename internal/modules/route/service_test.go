package route

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carpool/internal/maps"
	"carpool/internal/notify"
	"carpool/internal/types"
)

type memStore struct {
	mu     sync.Mutex
	routes map[types.ID]*Route
}

func newMemStore() *memStore {
	return &memStore{routes: map[types.ID]*Route{}}
}

func (m *memStore) Create(ctx context.Context, r *Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.routes[r.ID] = &cp
	return nil
}

func (m *memStore) Get(ctx context.Context, id types.ID) (*Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetWithDriver(ctx context.Context, id types.ID) (*Candidate, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Candidate{Route: *r}, nil
}

func (m *memStore) ListByDay(ctx context.Context, day time.Time, f CandidateFilter) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Candidate
	for _, r := range m.routes {
		if r.EndTime != nil {
			continue
		}
		if f.RideType != "" && r.RideType != f.RideType {
			continue
		}
		if f.Gender != "" && r.AllowedGender != f.Gender {
			continue
		}
		if f.SeatsRequired > 0 && r.SeatsAvailable < f.SeatsRequired {
			continue
		}
		out = append(out, Candidate{Route: *r})
	}
	return out, nil
}

func (m *memStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Route
	for _, r := range m.routes {
		if r.DriverID == driverID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) MarkStarted(ctx context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok || r.TripStarted {
		return false, nil
	}
	now := time.Now()
	r.TripStarted = true
	r.TripStartedAt = &now
	return true, nil
}

func (m *memStore) MarkEnded(ctx context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return false, nil
	}
	now := time.Now()
	r.EndTime = &now
	return true, nil
}

func (m *memStore) ReserveSeats(ctx context.Context, id types.ID, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return ErrNotFound
	}
	if r.SeatsAvailable < n {
		return ErrInsufficientSeats
	}
	r.SeatsAvailable -= n
	return nil
}

func (m *memStore) ReleaseSeats(ctx context.Context, id types.ID, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return ErrNotFound
	}
	r.SeatsAvailable += n
	if r.SeatsAvailable > r.SeatsTotal {
		r.SeatsAvailable = r.SeatsTotal
	}
	return nil
}

type stubDirections struct {
	route maps.Route
	err   error
}

func (s *stubDirections) GetRoute(ctx context.Context, origin, destination types.Point) (maps.Route, error) {
	return s.route, s.err
}

type stubGeocoder struct {
	addr string
	err  error
}

func (s *stubGeocoder) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	return s.addr, s.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	users  [][]types.ID
}

func (n *recordingNotifier) Push(ctx context.Context, users []types.ID, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	n.users = append(n.users, users)
}

type stubBookings struct {
	pending  []types.ID
	failures []AcceptFailure
	accepted []types.ID
	err      error
}

func (b *stubBookings) AcceptPending(ctx context.Context, routeID types.ID) ([]types.ID, []AcceptFailure, error) {
	return b.pending, b.failures, b.err
}

func (b *stubBookings) AcceptedRiders(ctx context.Context, routeID types.ID) ([]types.ID, error) {
	return b.accepted, b.err
}

func validRegister() RegisterCommand {
	return RegisterCommand{
		DriverID:  "driver-1",
		Start:     types.Point{Lat: 30.0444, Lng: 31.2357},
		End:       types.Point{Lat: 31.2001, Lng: 29.9187},
		StartTime: time.Now().Add(2 * time.Hour),
		Price:     100,
		Seats:     3,
		RideType:  "carpool",
	}
}

func TestRegister(t *testing.T) {
	store := newMemStore()
	dir := &stubDirections{route: maps.Route{
		Waypoints:       []types.Point{{Lat: 30.0444, Lng: 31.2357}, {Lat: 31.2001, Lng: 29.9187}},
		DistanceKm:      180,
		DurationMinutes: 150,
		Polyline:        "abc",
	}}
	svc := NewService(store, dir, &stubGeocoder{addr: "Tahrir Square"}, nil, &stubBookings{})

	cmd := validRegister()
	id, err := svc.Register(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	r, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.SeatsTotal != 3 || r.SeatsAvailable != 3 {
		t.Errorf("seats = %d/%d, want 3/3", r.SeatsAvailable, r.SeatsTotal)
	}
	if r.AllowedGender != GenderBoth {
		t.Errorf("gender = %q, want default %q", r.AllowedGender, GenderBoth)
	}
	if len(r.Waypoints) != 2 {
		t.Errorf("waypoints = %d, want 2", len(r.Waypoints))
	}
	if r.StartAddress != "Tahrir Square" {
		t.Errorf("start address = %q", r.StartAddress)
	}
	if r.EstimatedEndTime == nil {
		t.Fatal("estimated end time not set")
	}
	want := cmd.StartTime.Add(150 * time.Minute)
	if !r.EstimatedEndTime.Equal(want) {
		t.Errorf("eta = %v, want %v", r.EstimatedEndTime, want)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMemStore(), &stubDirections{}, nil, nil, &stubBookings{})
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*RegisterCommand)
	}{
		{"no driver", func(c *RegisterCommand) { c.DriverID = "" }},
		{"zero start time", func(c *RegisterCommand) { c.StartTime = time.Time{} }},
		{"negative price", func(c *RegisterCommand) { c.Price = -1 }},
		{"zero seats", func(c *RegisterCommand) { c.Seats = 0 }},
		{"too many seats", func(c *RegisterCommand) { c.Seats = 9 }},
		{"bad gender", func(c *RegisterCommand) { c.AllowedGender = "any" }},
		{"inverted ages", func(c *RegisterCommand) {
			lo, hi := 40, 20
			c.AgeMin, c.AgeMax = &lo, &hi
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := validRegister()
			tc.mutate(&cmd)
			if _, err := svc.Register(ctx, cmd); !errors.Is(err, ErrBadRequest) {
				t.Errorf("err = %v, want ErrBadRequest", err)
			}
		})
	}
}

func TestRegisterDirectionsFailure(t *testing.T) {
	dir := &stubDirections{err: maps.ErrLookupUnavailable}
	svc := NewService(newMemStore(), dir, nil, nil, &stubBookings{})

	_, err := svc.Register(context.Background(), validRegister())
	if !errors.Is(err, maps.ErrLookupUnavailable) {
		t.Fatalf("err = %v, want ErrLookupUnavailable", err)
	}
}

func TestRegisterGeocodeDegrades(t *testing.T) {
	store := newMemStore()
	dir := &stubDirections{route: maps.Route{DurationMinutes: 30}}
	svc := NewService(store, dir, &stubGeocoder{err: maps.ErrLookupUnavailable}, nil, &stubBookings{})

	id, err := svc.Register(context.Background(), validRegister())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	r, _ := store.Get(context.Background(), id)
	if r.StartAddress != "" || r.EndAddress != "" {
		t.Errorf("addresses = %q/%q, want empty on geocode failure", r.StartAddress, r.EndAddress)
	}
}

func TestStartTrip(t *testing.T) {
	store := newMemStore()
	store.routes["r1"] = &Route{ID: "r1", DriverID: "driver-1"}
	notifier := &recordingNotifier{}
	bookings := &stubBookings{
		pending:  []types.ID{"rider-1", "rider-2"},
		failures: []AcceptFailure{{BookingID: "b3", Err: ErrInsufficientSeats}},
	}
	svc := NewService(store, &stubDirections{}, nil, notifier, bookings)

	res, err := svc.StartTrip(context.Background(), "r1", "driver-1")
	if err != nil {
		t.Fatalf("StartTrip: %v", err)
	}
	if len(res.Accepted) != 2 {
		t.Errorf("accepted = %d, want 2", len(res.Accepted))
	}
	if len(res.Failures) != 1 {
		t.Errorf("failures = %d, want 1", len(res.Failures))
	}
	r, _ := store.Get(context.Background(), "r1")
	if !r.TripStarted {
		t.Error("route not marked started")
	}
	if len(notifier.events) != 1 || notifier.events[0].Action != "carpooling_trip_started" {
		t.Errorf("notifications = %+v", notifier.events)
	}
}

func TestStartTripNotOwner(t *testing.T) {
	store := newMemStore()
	store.routes["r1"] = &Route{ID: "r1", DriverID: "driver-1"}
	svc := NewService(store, &stubDirections{}, nil, nil, &stubBookings{})

	if _, err := svc.StartTrip(context.Background(), "r1", "driver-2"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestStartTripAlreadyStarted(t *testing.T) {
	store := newMemStore()
	store.routes["r1"] = &Route{ID: "r1", DriverID: "driver-1", TripStarted: true}
	svc := NewService(store, &stubDirections{}, nil, nil, &stubBookings{})

	if _, err := svc.StartTrip(context.Background(), "r1", "driver-1"); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("err = %v, want ErrAlreadyStarted", err)
	}
}

// A failing booking during the bulk accept must not abort the start or the
// other confirmations.
func TestStartTripPartialAcceptFailure(t *testing.T) {
	store := newMemStore()
	store.routes["r1"] = &Route{ID: "r1", DriverID: "driver-1"}
	svc := NewService(store, &stubDirections{}, nil, nil, &stubBookings{
		pending: []types.ID{"rider-1", "rider-3"},
		failures: []AcceptFailure{
			{BookingID: "b2", Err: errors.New("fcm token expired")},
		},
	})

	res, err := svc.StartTrip(context.Background(), "r1", "driver-1")
	if err != nil {
		t.Fatalf("StartTrip: %v", err)
	}
	r, _ := store.Get(context.Background(), "r1")
	if !r.TripStarted {
		t.Error("route not started despite recoverable booking failure")
	}
	if len(res.Accepted) != 2 || len(res.Failures) != 1 {
		t.Errorf("accepted = %d failures = %d, want 2/1", len(res.Accepted), len(res.Failures))
	}
}

func TestEndTrip(t *testing.T) {
	store := newMemStore()
	store.routes["r1"] = &Route{ID: "r1", DriverID: "driver-1", TripStarted: true}
	notifier := &recordingNotifier{}
	svc := NewService(store, &stubDirections{}, nil, notifier, &stubBookings{accepted: []types.ID{"rider-1"}})

	if err := svc.EndTrip(context.Background(), "r1", "driver-1"); err != nil {
		t.Fatalf("EndTrip: %v", err)
	}
	r, _ := store.Get(context.Background(), "r1")
	if r.EndTime == nil {
		t.Error("end time not stamped")
	}
	if len(notifier.events) != 1 || notifier.events[0].Action != "carpooling_trip_ended" {
		t.Errorf("notifications = %+v", notifier.events)
	}
}

func TestEndTripNotOwner(t *testing.T) {
	store := newMemStore()
	store.routes["r1"] = &Route{ID: "r1", DriverID: "driver-1"}
	svc := NewService(store, &stubDirections{}, nil, nil, &stubBookings{})

	if err := svc.EndTrip(context.Background(), "r1", "driver-2"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestCorridorPoints(t *testing.T) {
	r := Route{
		Waypoints: []types.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}},
		RestStops: []RestStop{{Point: types.Point{Lat: 3, Lng: 3}, Name: "gas station"}},
	}
	pts := r.CorridorPoints()
	if len(pts) != 3 {
		t.Fatalf("points = %d, want 3", len(pts))
	}
	if pts[2] != (types.Point{Lat: 3, Lng: 3}) {
		t.Errorf("rest stop not appended last: %+v", pts[2])
	}
}
