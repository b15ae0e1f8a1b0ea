// README: Booking aggregate and its state machine.
package booking

import (
	"time"

	"carpool/internal/types"
)

// Status is the rider-side lifecycle state of a booking.
const (
	StatusPending   = "pending"
	StatusWaiting   = "waiting"
	StatusOnboard   = "onboard"
	StatusDropped   = "dropped"
	StatusCancelled = "cancelled"
)

// Decision is the driver's review verdict on a join request.
const (
	DecisionPending  = "pending"
	DecisionAccepted = "accepted"
	DecisionRejected = "rejected"
)

// AllowedTransitions is the full booking state machine. Dropped is terminal;
// cancellation is possible from any active state.
var AllowedTransitions = map[string][]string{
	StatusPending: {StatusWaiting, StatusCancelled},
	StatusWaiting: {StatusOnboard, StatusCancelled},
	StatusOnboard: {StatusDropped, StatusCancelled},
}

func CanTransition(from, to string) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Booking is a rider's reservation on a route. Pickup and Dropoff are the
// rider's requested points; SnappedPickup and SnappedDropoff are the nearest
// points on the driver's corridor, fixed at join time.
type Booking struct {
	ID             types.ID
	RouteID        types.ID
	RiderID        types.ID
	Pickup         types.Point
	Dropoff        types.Point
	SnappedPickup  types.Point
	SnappedDropoff types.Point
	PickupAddress  string
	DropoffAddress string
	Seats          int
	Fare           float64
	Status         string
	Decision       string
	OTP            string
	SeatsReleased  bool
	ArrivedAt      *time.Time
	LeftAt         *time.Time
	CreatedAt      time.Time
}

// Active reports whether the booking still occupies seats.
func (b *Booking) Active() bool {
	switch b.Status {
	case StatusCancelled, StatusDropped:
		return false
	}
	return b.Decision != DecisionRejected
}

// Event is one entry of the booking audit trail.
type Event struct {
	ID        types.ID
	BookingID types.ID
	From      string
	To        string
	Actor     types.ID
	At        time.Time
}

// Passenger is a booking joined with its rider profile, as shown to the
// driver.
type Passenger struct {
	Booking Booking
	Rider   RiderSummary
}

type RiderSummary struct {
	ID           types.ID
	FullName     string
	Gender       string
	ProfileImage string
	PhoneNumber  string
}
