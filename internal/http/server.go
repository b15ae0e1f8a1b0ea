// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/http/handlers"
	"carpool/internal/http/middleware"
	"carpool/internal/infra"
	"carpool/internal/modules/booking"
	"carpool/internal/modules/matching"
	"carpool/internal/modules/route"
)

type ServerDeps struct {
	Routes   *route.Service
	Bookings *booking.Service
	Matching *matching.Service
	Verifier infra.TokenVerifier
}

type Server struct {
	routes   *route.Service
	bookings *booking.Service
	matching *matching.Service
	verifier infra.TokenVerifier
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		routes:   deps.Routes,
		bookings: deps.Bookings,
		matching: deps.Matching,
		verifier: deps.Verifier,
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api/carpool")
	api.Use(middleware.Auth(s.verifier))

	routeHandler := handlers.NewRouteHandler(s.routes)
	api.POST("/routes", routeHandler.Register)
	api.GET("/routes/:id", routeHandler.Get)
	api.GET("/schedule", routeHandler.Schedule)
	api.POST("/routes/:id/start", routeHandler.Start)
	api.POST("/routes/:id/end", routeHandler.End)

	bookingHandler := handlers.NewBookingHandler(s.bookings)
	api.GET("/routes/:id/passengers", bookingHandler.RoutePassengers)
	api.POST("/bookings", bookingHandler.Join)
	api.POST("/bookings/:id/review", bookingHandler.Review)
	api.POST("/bookings/:id/otp", bookingHandler.MatchOTP)
	api.POST("/bookings/:id/onboard", bookingHandler.Onboard)
	api.POST("/bookings/:id/drop", bookingHandler.Drop)
	api.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	api.GET("/bookings/:id/summary", bookingHandler.Summary)
	api.GET("/trips", bookingHandler.Trips)

	matchingHandler := handlers.NewMatchingHandler(s.matching)
	api.POST("/matches", matchingHandler.Find)
	api.POST("/routes/:id/suggest-dropoff", matchingHandler.SuggestDropoff)

	return r
}
