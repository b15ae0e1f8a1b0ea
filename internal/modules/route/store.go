// README: Route store backed by PostgreSQL; sole owner of the seat counters.
package route

import (
	"context"
	"database/sql"
	"encoding/json"
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

type restStopRow struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name,omitempty"`
}

func (s *Store) Create(ctx context.Context, r *Route) error {
	points, err := json.Marshal(r.Waypoints)
	if err != nil {
		return err
	}
	stops, err := marshalRestStops(r.RestStops)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO carpool_routes (
			id, driver_id, vehicle_id,
			start_lat, start_lng, end_lat, end_lng,
			start_address, end_address,
			route_points, rest_stops, polyline,
			start_time, estimated_end_time, price,
			seats_total, seats_available, ride_type,
			allowed_gender, allowed_age_min, allowed_age_max,
			is_ac, is_smoking_allowed, has_music, has_screen_entertainment, allow_luggage,
			trip_started, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9,
			$10, $11, $12,
			$13, $14, $15,
			$16, $17, $18,
			$19, $20, $21,
			$22, $23, $24, $25, $26,
			FALSE, $27
		)`,
		string(r.ID), string(r.DriverID), toStringPtr(r.VehicleID),
		r.Start.Lat, r.Start.Lng, r.End.Lat, r.End.Lng,
		r.StartAddress, r.EndAddress,
		points, stops, r.Polyline,
		r.StartTime, r.EstimatedEndTime, r.Price,
		r.SeatsTotal, r.SeatsAvailable, r.RideType,
		r.AllowedGender, r.AgeMin, r.AgeMax,
		r.Prefs.AC, r.Prefs.SmokingAllowed, r.Prefs.Music, r.Prefs.ScreenEntertainment, r.Prefs.LuggageAllowed,
		r.CreatedAt,
	)
	return err
}

const routeColumns = `
	r.id, r.driver_id, r.vehicle_id,
	r.start_lat, r.start_lng, r.end_lat, r.end_lng,
	r.start_address, r.end_address,
	r.route_points, r.rest_stops, r.polyline,
	r.start_time, r.estimated_end_time, r.price,
	r.seats_total, r.seats_available, r.ride_type,
	r.allowed_gender, r.allowed_age_min, r.allowed_age_max,
	r.is_ac, r.is_smoking_allowed, r.has_music, r.has_screen_entertainment, r.allow_luggage,
	r.trip_started, r.trip_started_at, r.end_time, r.created_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Route, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+routeColumns+`
		FROM carpool_routes r
		WHERE r.id = $1`, string(id),
	)
	r, err := scanRoute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

const candidateColumns = routeColumns + `,
	u.id, u.full_name, COALESCE(u.gender, ''), COALESCE(u.profile_image, ''),
	COALESCE(v.brand_name, ''), COALESCE(v.model_name, ''), COALESCE(v.plate_number, ''),
	COALESCE(NULLIF(v.category_name, ''), '` + DefaultCategory + `')`

const candidateJoins = `
	FROM carpool_routes r
	JOIN users u ON u.id = r.driver_id
	LEFT JOIN vehicles v ON v.id = r.vehicle_id`

func (s *Store) GetWithDriver(ctx context.Context, id types.ID) (*Candidate, error) {
	row := s.db.QueryRow(ctx, `SELECT `+candidateColumns+candidateJoins+` WHERE r.id = $1`, string(id))
	c, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListByDay returns open routes starting on the given day, pre-filtered by the
// cheap scalar criteria. Geometry is left to the match engine.
func (s *Store) ListByDay(ctx context.Context, day time.Time, f CandidateFilter) ([]Candidate, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := s.db.Query(ctx, `
		SELECT `+candidateColumns+candidateJoins+`
		WHERE r.start_time >= $1 AND r.start_time < $2
		  AND r.end_time IS NULL
		  AND ($3 = '' OR r.ride_type = $3)
		  AND ($4 = '' OR r.allowed_gender = $4)
		  AND ($5 <= 0 OR r.seats_available >= $5)
		ORDER BY r.created_at`,
		dayStart, dayEnd, f.RideType, f.Gender, f.SeatsRequired,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID) ([]*Route, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+routeColumns+`
		FROM carpool_routes r
		WHERE r.driver_id = $1
		ORDER BY r.start_time DESC`, string(driverID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MarkStarted(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE carpool_routes
		SET trip_started = TRUE, trip_started_at = NOW()
		WHERE id = $1 AND trip_started = FALSE`, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkEnded(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE carpool_routes
		SET end_time = NOW()
		WHERE id = $1`, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReserveSeats decrements availability only when the full request fits; the
// conditional update serializes concurrent reservations at the row level.
func (s *Store) ReserveSeats(ctx context.Context, id types.ID, n int) error {
	if n <= 0 {
		return ErrBadRequest
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE carpool_routes
		SET seats_available = seats_available - $1
		WHERE id = $2 AND seats_available >= $1`, n, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientSeats
	}
	return nil
}

// ReleaseSeats returns seats to the route, clamped at seats_total.
func (s *Store) ReleaseSeats(ctx context.Context, id types.ID, n int) error {
	if n <= 0 {
		return ErrBadRequest
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE carpool_routes
		SET seats_available = LEAST(seats_total, seats_available + $1)
		WHERE id = $2`, n, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(row rowScanner) (*Route, error) {
	var (
		r         Route
		vehicleID sql.NullString
		points    []byte
		stops     []byte
		eta       sql.NullTime
		ageMin    sql.NullInt64
		ageMax    sql.NullInt64
		startedAt sql.NullTime
		endTime   sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.DriverID, &vehicleID,
		&r.Start.Lat, &r.Start.Lng, &r.End.Lat, &r.End.Lng,
		&r.StartAddress, &r.EndAddress,
		&points, &stops, &r.Polyline,
		&r.StartTime, &eta, &r.Price,
		&r.SeatsTotal, &r.SeatsAvailable, &r.RideType,
		&r.AllowedGender, &ageMin, &ageMax,
		&r.Prefs.AC, &r.Prefs.SmokingAllowed, &r.Prefs.Music, &r.Prefs.ScreenEntertainment, &r.Prefs.LuggageAllowed,
		&r.TripStarted, &startedAt, &endTime, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if vehicleID.Valid {
		v := types.ID(vehicleID.String)
		r.VehicleID = &v
	}
	if len(points) > 0 {
		if err := json.Unmarshal(points, &r.Waypoints); err != nil {
			return nil, err
		}
	}
	if len(stops) > 0 {
		var rs []restStopRow
		if err := json.Unmarshal(stops, &rs); err != nil {
			return nil, err
		}
		for _, s := range rs {
			r.RestStops = append(r.RestStops, RestStop{
				Point: types.Point{Lat: s.Lat, Lng: s.Lng},
				Name:  s.Name,
			})
		}
	}
	r.EstimatedEndTime = toTimePtr(eta)
	r.AgeMin = toIntPtr(ageMin)
	r.AgeMax = toIntPtr(ageMax)
	r.TripStartedAt = toTimePtr(startedAt)
	r.EndTime = toTimePtr(endTime)
	return &r, nil
}

func scanCandidate(row rowScanner) (*Candidate, error) {
	var (
		c         Candidate
		r         = &c.Route
		vehicleID sql.NullString
		points    []byte
		stops     []byte
		eta       sql.NullTime
		ageMin    sql.NullInt64
		ageMax    sql.NullInt64
		startedAt sql.NullTime
		endTime   sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.DriverID, &vehicleID,
		&r.Start.Lat, &r.Start.Lng, &r.End.Lat, &r.End.Lng,
		&r.StartAddress, &r.EndAddress,
		&points, &stops, &r.Polyline,
		&r.StartTime, &eta, &r.Price,
		&r.SeatsTotal, &r.SeatsAvailable, &r.RideType,
		&r.AllowedGender, &ageMin, &ageMax,
		&r.Prefs.AC, &r.Prefs.SmokingAllowed, &r.Prefs.Music, &r.Prefs.ScreenEntertainment, &r.Prefs.LuggageAllowed,
		&r.TripStarted, &startedAt, &endTime, &r.CreatedAt,
		&c.Driver.ID, &c.Driver.FullName, &c.Driver.Gender, &c.Driver.ProfileImage,
		&c.Vehicle.Brand, &c.Vehicle.Model, &c.Vehicle.PlateNumber, &c.Vehicle.Category,
	)
	if err != nil {
		return nil, err
	}

	if vehicleID.Valid {
		v := types.ID(vehicleID.String)
		r.VehicleID = &v
	}
	if len(points) > 0 {
		if err := json.Unmarshal(points, &r.Waypoints); err != nil {
			return nil, err
		}
	}
	if len(stops) > 0 {
		var rs []restStopRow
		if err := json.Unmarshal(stops, &rs); err != nil {
			return nil, err
		}
		for _, s := range rs {
			r.RestStops = append(r.RestStops, RestStop{
				Point: types.Point{Lat: s.Lat, Lng: s.Lng},
				Name:  s.Name,
			})
		}
	}
	r.EstimatedEndTime = toTimePtr(eta)
	r.AgeMin = toIntPtr(ageMin)
	r.AgeMax = toIntPtr(ageMax)
	r.TripStartedAt = toTimePtr(startedAt)
	r.EndTime = toTimePtr(endTime)
	return &c, nil
}

func marshalRestStops(stops []RestStop) ([]byte, error) {
	if len(stops) == 0 {
		return nil, nil
	}
	rs := make([]restStopRow, len(stops))
	for i, s := range stops {
		rs[i] = restStopRow{Lat: s.Point.Lat, Lng: s.Point.Lng, Name: s.Name}
	}
	return json.Marshal(rs)
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
