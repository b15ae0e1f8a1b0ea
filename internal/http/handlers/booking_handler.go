// README: Booking handlers: join, review, OTP handoff, ride progression, history.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/http/middleware"
	"carpool/internal/modules/booking"
	"carpool/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{bookings: svc}
}

type joinReq struct {
	RouteID    string  `json:"route_id"`
	PickupLat  float64 `json:"pickup_lat"`
	PickupLng  float64 `json:"pickup_lng"`
	DropoffLat float64 `json:"dropoff_lat"`
	DropoffLng float64 `json:"dropoff_lng"`
	Seats      int     `json:"seats"`
}

func (h *BookingHandler) Join(c *gin.Context) {
	var req joinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.bookings.Join(c.Request.Context(), booking.JoinCommand{
		RouteID: types.ID(req.RouteID),
		RiderID: types.ID(middleware.CallerUID(c)),
		Pickup:  types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff: types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		Seats:   req.Seats,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, bookingView(b))
}

type reviewReq struct {
	Accept *bool `json:"accept"`
}

func (h *BookingHandler) Review(c *gin.Context) {
	var req reviewReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Accept == nil {
		writeError(c, http.StatusBadRequest, "accept field required")
		return
	}
	err := h.bookings.Review(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)), *req.Accept)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	decision := booking.DecisionAccepted
	if !*req.Accept {
		decision = booking.DecisionRejected
	}
	writeJSON(c, http.StatusOK, gin.H{"decision": decision})
}

type otpReq struct {
	OTP string `json:"otp"`
}

func (h *BookingHandler) MatchOTP(c *gin.Context) {
	var req otpReq
	if err := c.ShouldBindJSON(&req); err != nil || req.OTP == "" {
		writeError(c, http.StatusBadRequest, "otp required")
		return
	}
	err := h.bookings.MatchOTP(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)), req.OTP)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": booking.StatusWaiting})
}

func (h *BookingHandler) Onboard(c *gin.Context) {
	err := h.bookings.Onboard(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": booking.StatusOnboard})
}

func (h *BookingHandler) Drop(c *gin.Context) {
	err := h.bookings.Drop(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": booking.StatusDropped})
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	err := h.bookings.Cancel(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": booking.StatusCancelled})
}

func (h *BookingHandler) RoutePassengers(c *gin.Context) {
	ps, err := h.bookings.RoutePassengers(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(ps))
	var totalFare float64
	for _, p := range ps {
		totalFare += p.Booking.Fare
		out = append(out, gin.H{
			"booking":         bookingView(&p.Booking),
			"rider_id":        p.Rider.ID,
			"full_name":       p.Rider.FullName,
			"gender":          p.Rider.Gender,
			"profile_image":   p.Rider.ProfileImage,
			"phone_number":    p.Rider.PhoneNumber,
			"snapped_pickup":  p.Booking.SnappedPickup,
			"snapped_dropoff": p.Booking.SnappedDropoff,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"passengers": out, "total_fare": totalFare})
}

func (h *BookingHandler) Summary(c *gin.Context) {
	sum, err := h.bookings.Summary(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	history := make([]gin.H, 0, len(sum.History))
	for _, ev := range sum.History {
		history = append(history, gin.H{"from": ev.From, "to": ev.To, "at": ev.At})
	}
	writeJSON(c, http.StatusOK, gin.H{
		"booking": bookingView(&sum.Booking),
		"route": gin.H{
			"route_id":      sum.Route.ID,
			"start_address": sum.Route.StartAddress,
			"end_address":   sum.Route.EndAddress,
			"start_time":    sum.Route.StartTime,
			"end_time":      sum.Route.EndTime,
		},
		"driver": gin.H{
			"driver_id":     sum.Driver.ID,
			"full_name":     sum.Driver.FullName,
			"profile_image": sum.Driver.ProfileImage,
		},
		"vehicle": gin.H{
			"brand":        sum.Vehicle.Brand,
			"model":        sum.Vehicle.Model,
			"plate_number": sum.Vehicle.PlateNumber,
			"category":     sum.Vehicle.Category,
		},
		"history": history,
	})
}

func (h *BookingHandler) Trips(c *gin.Context) {
	bs, err := h.bookings.Trips(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(bs))
	for _, b := range bs {
		out = append(out, bookingView(b))
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": out})
}

func bookingView(b *booking.Booking) gin.H {
	return gin.H{
		"booking_id":      b.ID,
		"route_id":        b.RouteID,
		"pickup":          b.Pickup,
		"dropoff":         b.Dropoff,
		"snapped_pickup":  b.SnappedPickup,
		"snapped_dropoff": b.SnappedDropoff,
		"pickup_address":  b.PickupAddress,
		"dropoff_address": b.DropoffAddress,
		"seats":           b.Seats,
		"fare":            b.Fare,
		"status":          b.Status,
		"driver_decision": b.Decision,
		"otp":             b.OTP,
		"arrived_at":      b.ArrivedAt,
		"left_at":         b.LeftAt,
	}
}
