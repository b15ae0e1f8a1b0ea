// README: Handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/maps"
	"carpool/internal/modules/booking"
	"carpool/internal/modules/matching"
	"carpool/internal/modules/route"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, route.ErrBadRequest),
		errors.Is(err, booking.ErrBadRequest),
		errors.Is(err, matching.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, route.ErrNotFound),
		errors.Is(err, booking.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, route.ErrUnauthorized),
		errors.Is(err, booking.ErrUnauthorized):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, route.ErrInsufficientSeats),
		errors.Is(err, route.ErrAlreadyStarted),
		errors.Is(err, route.ErrRouteClosed),
		errors.Is(err, booking.ErrInvalidState),
		errors.Is(err, booking.ErrConflict),
		errors.Is(err, booking.ErrAlreadyReviewed):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrOtpMismatch):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, maps.ErrLookupUnavailable):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
