package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"minuteride/internal/lifecycle"
	"minuteride/internal/middleware"
	"minuteride/internal/repository"
	"minuteride/internal/service"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	var cfgErr *service.ConfigError
	if errors.As(err, &cfgErr) {
		body := gin.H{"error": cfgErr.Message}
		for k, v := range cfgErr.Flags {
			body[k] = v
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	if errors.Is(err, service.ErrFetchRecipients) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch drivers"})
		return
	}

	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidJobID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrMissingPickup),
		errors.Is(err, service.ErrMissingDropoff),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidLocation):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrDriverHasActiveTrip),
		errors.Is(err, service.ErrNoActiveTrip),
		errors.Is(err, lifecycle.ErrJobNotAssigned),
		errors.Is(err, lifecycle.ErrJobNotInProgress):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, lifecycle.ErrDriverNotAssigned):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// actor returns the authenticated caller or writes a 401.
func actor(c *gin.Context) (actorID string, ok bool) {
	a, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: middleware.ErrUnauthorized.Error()})
		return "", false
	}
	return a.ID, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeFormat)
}
