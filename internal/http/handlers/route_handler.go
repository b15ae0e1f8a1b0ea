// README: Driver route handlers: registration, schedule, trip start and end.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/http/middleware"
	"carpool/internal/modules/route"
	"carpool/internal/types"
)

type RouteHandler struct {
	routes *route.Service
}

func NewRouteHandler(svc *route.Service) *RouteHandler {
	return &RouteHandler{routes: svc}
}

type restStopReq struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

type registerRouteReq struct {
	VehicleID     string        `json:"vehicle_id"`
	StartLat      float64       `json:"start_lat"`
	StartLng      float64       `json:"start_lng"`
	EndLat        float64       `json:"end_lat"`
	EndLng        float64       `json:"end_lng"`
	StartTime     time.Time     `json:"start_time"`
	Price         float64       `json:"price"`
	Seats         int           `json:"seats"`
	RideType      string        `json:"ride_type"`
	AllowedGender string        `json:"allowed_gender"`
	AgeMin        *int          `json:"age_min"`
	AgeMax        *int          `json:"age_max"`
	AC            bool          `json:"is_ac"`
	Smoking       bool          `json:"is_smoking_allowed"`
	Music         bool          `json:"has_music"`
	Screen        bool          `json:"has_screen_entertainment"`
	Luggage       bool          `json:"allow_luggage"`
	RestStops     []restStopReq `json:"rest_stops"`
}

func (h *RouteHandler) Register(c *gin.Context) {
	var req registerRouteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := route.RegisterCommand{
		DriverID:      types.ID(middleware.CallerUID(c)),
		Start:         types.Point{Lat: req.StartLat, Lng: req.StartLng},
		End:           types.Point{Lat: req.EndLat, Lng: req.EndLng},
		StartTime:     req.StartTime,
		Price:         req.Price,
		Seats:         req.Seats,
		RideType:      req.RideType,
		AllowedGender: req.AllowedGender,
		AgeMin:        req.AgeMin,
		AgeMax:        req.AgeMax,
		Prefs: route.Preferences{
			AC:                  req.AC,
			SmokingAllowed:      req.Smoking,
			Music:               req.Music,
			ScreenEntertainment: req.Screen,
			LuggageAllowed:      req.Luggage,
		},
	}
	if req.VehicleID != "" {
		v := types.ID(req.VehicleID)
		cmd.VehicleID = &v
	}
	for _, s := range req.RestStops {
		cmd.RestStops = append(cmd.RestStops, route.RestStop{
			Point: types.Point{Lat: s.Lat, Lng: s.Lng},
			Name:  s.Name,
		})
	}

	id, err := h.routes.Register(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	r, err := h.routes.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, routeView(r))
}

func (h *RouteHandler) Get(c *gin.Context) {
	r, err := h.routes.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, routeView(r))
}

func (h *RouteHandler) Schedule(c *gin.Context) {
	rs, err := h.routes.Schedule(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rs))
	for _, r := range rs {
		out = append(out, routeView(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"routes": out})
}

func (h *RouteHandler) Start(c *gin.Context) {
	res, err := h.routes.StartTrip(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	failed := make([]gin.H, 0, len(res.Failures))
	for _, f := range res.Failures {
		failed = append(failed, gin.H{"booking_id": f.BookingID, "error": f.Err.Error()})
	}
	writeJSON(c, http.StatusOK, gin.H{
		"started_at":      res.StartedAt,
		"accepted_riders": res.Accepted,
		"failed":          failed,
	})
}

func (h *RouteHandler) End(c *gin.Context) {
	err := h.routes.EndTrip(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ended"})
}

func routeView(r *route.Route) gin.H {
	return gin.H{
		"route_id":           r.ID,
		"driver_id":          r.DriverID,
		"start":              r.Start,
		"end":                r.End,
		"start_address":      r.StartAddress,
		"end_address":        r.EndAddress,
		"waypoints":          r.Waypoints,
		"polyline":           r.Polyline,
		"start_time":         r.StartTime,
		"estimated_end_time": r.EstimatedEndTime,
		"price":              r.Price,
		"seats_total":        r.SeatsTotal,
		"seats_available":    r.SeatsAvailable,
		"ride_type":          r.RideType,
		"allowed_gender":     r.AllowedGender,
		"trip_started":       r.TripStarted,
		"end_time":           r.EndTime,
	}
}
