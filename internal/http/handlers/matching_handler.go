// README: Rider search handlers: match lookup and dropoff suggestion.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/modules/matching"
	"carpool/internal/types"
)

type MatchingHandler struct {
	matching *matching.Service
}

func NewMatchingHandler(svc *matching.Service) *MatchingHandler {
	return &MatchingHandler{matching: svc}
}

type findReq struct {
	PickupLat  float64   `json:"pickup_lat"`
	PickupLng  float64   `json:"pickup_lng"`
	DropoffLat float64   `json:"dropoff_lat"`
	DropoffLng float64   `json:"dropoff_lng"`
	Day        time.Time `json:"day"`
	RideType   string    `json:"ride_type"`
	Gender     string    `json:"gender"`
	Category   string    `json:"category"`
	Seats      int       `json:"seats"`
}

func (h *MatchingHandler) Find(c *gin.Context) {
	var req findReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	matches, err := h.matching.Find(c.Request.Context(), matching.Query{
		Pickup:   types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff:  types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		Day:      req.Day,
		RideType: req.RideType,
		Gender:   req.Gender,
		Category: req.Category,
		Seats:    req.Seats,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(matches))
	for _, m := range matches {
		out = append(out, gin.H{
			"route_id":        m.Route.ID,
			"start_time":      m.Route.StartTime,
			"seats_available": m.Route.SeatsAvailable,
			"ride_type":       m.Route.RideType,
			"allowed_gender":  m.Route.AllowedGender,
			"preferences": gin.H{
				"is_ac":                    m.Route.Prefs.AC,
				"is_smoking_allowed":       m.Route.Prefs.SmokingAllowed,
				"has_music":                m.Route.Prefs.Music,
				"has_screen_entertainment": m.Route.Prefs.ScreenEntertainment,
				"allow_luggage":            m.Route.Prefs.LuggageAllowed,
			},
			"driver": gin.H{
				"driver_id":     m.Driver.ID,
				"full_name":     m.Driver.FullName,
				"gender":        m.Driver.Gender,
				"profile_image": m.Driver.ProfileImage,
			},
			"vehicle": gin.H{
				"brand":        m.Vehicle.Brand,
				"model":        m.Vehicle.Model,
				"plate_number": m.Vehicle.PlateNumber,
				"category":     m.Vehicle.Category,
			},
			"pickup":          m.Pickup,
			"dropoff":         m.Dropoff,
			"pickup_address":  m.PickupAddress,
			"dropoff_address": m.DropoffAddress,
			"segment_km":      m.SegmentKm,
			"fare":            m.Fare,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"matches": out})
}

type suggestReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *MatchingHandler) SuggestDropoff(c *gin.Context) {
	var req suggestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, ok, err := h.matching.SuggestDropoff(c.Request.Context(), types.ID(c.Param("id")), types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if !ok {
		writeJSON(c, http.StatusOK, gin.H{"found": false})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"found": true, "dropoff": p})
}
