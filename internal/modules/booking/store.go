// README: Booking store backed by PostgreSQL; status and decision updates are conditional.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carpool/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO carpool_passengers (
			id, route_id, rider_id,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			snapped_pickup_lat, snapped_pickup_lng, snapped_dropoff_lat, snapped_dropoff_lng,
			pickup_address, dropoff_address,
			seats, fare, status, driver_decision, otp, seats_released, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13,
			$14, $15, $16, $17, $18, FALSE, $19
		)`,
		string(b.ID), string(b.RouteID), string(b.RiderID),
		b.Pickup.Lat, b.Pickup.Lng, b.Dropoff.Lat, b.Dropoff.Lng,
		b.SnappedPickup.Lat, b.SnappedPickup.Lng, b.SnappedDropoff.Lat, b.SnappedDropoff.Lng,
		b.PickupAddress, b.DropoffAddress,
		b.Seats, b.Fare, b.Status, b.Decision, b.OTP, b.CreatedAt,
	)
	return err
}

const bookingColumns = `
	p.id, p.route_id, p.rider_id,
	p.pickup_lat, p.pickup_lng, p.dropoff_lat, p.dropoff_lng,
	p.snapped_pickup_lat, p.snapped_pickup_lng, p.snapped_dropoff_lat, p.snapped_dropoff_lng,
	p.pickup_address, p.dropoff_address,
	p.seats, p.fare, p.status, p.driver_decision, p.otp, p.seats_released,
	p.arrived_at, p.left_at, p.created_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM carpool_passengers p
		WHERE p.id = $1`, string(id),
	)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

const passengerColumns = bookingColumns + `,
	u.id, u.full_name, COALESCE(u.gender, ''), COALESCE(u.profile_image, ''), COALESCE(u.phone_number, '')`

func (s *Store) GetPassenger(ctx context.Context, id types.ID) (*Passenger, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+passengerColumns+`
		FROM carpool_passengers p
		JOIN users u ON u.id = p.rider_id
		WHERE p.id = $1`, string(id),
	)
	p, err := scanPassenger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *Store) ListByRoute(ctx context.Context, routeID types.ID, decision string) ([]Passenger, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+passengerColumns+`
		FROM carpool_passengers p
		JOIN users u ON u.id = p.rider_id
		WHERE p.route_id = $1 AND ($2 = '' OR p.driver_decision = $2)
		ORDER BY p.created_at`, string(routeID), decision,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Passenger
	for rows.Next() {
		p, err := scanPassenger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) ListByRider(ctx context.Context, riderID types.ID) ([]*Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM carpool_passengers p
		WHERE p.rider_id = $1
		ORDER BY p.created_at DESC`, string(riderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateStatus moves the booking from one state to another, stamping the
// arrival and departure times as the state passes through onboard and dropped.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE carpool_passengers
		SET status = $1,
		    arrived_at = CASE WHEN $1 = 'onboard' THEN NOW() ELSE arrived_at END,
		    left_at    = CASE WHEN $1 = 'dropped' THEN NOW() ELSE left_at END
		WHERE id = $2 AND status = $3`, to, string(id), from,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UpdateDecision(ctx context.Context, id types.ID, from, to string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE carpool_passengers
		SET driver_decision = $1
		WHERE id = $2 AND driver_decision = $3`, to, string(id), from,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSeatsReleased flips the released flag once; the first caller wins and
// gets to credit the seats back.
func (s *Store) MarkSeatsReleased(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE carpool_passengers
		SET seats_released = TRUE
		WHERE id = $1 AND seats_released = FALSE`, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, ev Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_state_events (id, booking_id, from_status, to_status, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(ev.ID), string(ev.BookingID), ev.From, ev.To, string(ev.Actor), ev.At,
	)
	return err
}

func (s *Store) ListEvents(ctx context.Context, bookingID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, from_status, to_status, actor, created_at
		FROM booking_state_events
		WHERE booking_id = $1
		ORDER BY created_at`, string(bookingID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.BookingID, &ev.From, &ev.To, &ev.Actor, &ev.At); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var (
		b         Booking
		arrivedAt sql.NullTime
		leftAt    sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.RouteID, &b.RiderID,
		&b.Pickup.Lat, &b.Pickup.Lng, &b.Dropoff.Lat, &b.Dropoff.Lng,
		&b.SnappedPickup.Lat, &b.SnappedPickup.Lng, &b.SnappedDropoff.Lat, &b.SnappedDropoff.Lng,
		&b.PickupAddress, &b.DropoffAddress,
		&b.Seats, &b.Fare, &b.Status, &b.Decision, &b.OTP, &b.SeatsReleased,
		&arrivedAt, &leftAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.ArrivedAt = nullTimePtr(arrivedAt)
	b.LeftAt = nullTimePtr(leftAt)
	return &b, nil
}

func scanPassenger(row rowScanner) (*Passenger, error) {
	var (
		p         Passenger
		b         = &p.Booking
		arrivedAt sql.NullTime
		leftAt    sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.RouteID, &b.RiderID,
		&b.Pickup.Lat, &b.Pickup.Lng, &b.Dropoff.Lat, &b.Dropoff.Lng,
		&b.SnappedPickup.Lat, &b.SnappedPickup.Lng, &b.SnappedDropoff.Lat, &b.SnappedDropoff.Lng,
		&b.PickupAddress, &b.DropoffAddress,
		&b.Seats, &b.Fare, &b.Status, &b.Decision, &b.OTP, &b.SeatsReleased,
		&arrivedAt, &leftAt, &b.CreatedAt,
		&p.Rider.ID, &p.Rider.FullName, &p.Rider.Gender, &p.Rider.ProfileImage, &p.Rider.PhoneNumber,
	)
	if err != nil {
		return nil, err
	}
	b.ArrivedAt = nullTimePtr(arrivedAt)
	b.LeftAt = nullTimePtr(leftAt)
	return &p, nil
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
