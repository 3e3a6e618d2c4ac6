package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"minuteride/internal/domain"
	"minuteride/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// RecordPositionRequest is the HTTP request body for a position sample.
type RecordPositionRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// TripSessionResponse is the HTTP representation of a running trip.
type TripSessionResponse struct {
	JobID          string  `json:"job_id"`
	DriverID       string  `json:"driver_id"`
	StartedAt      string  `json:"started_at"`
	DistanceMeters float64 `json:"distance_meters"`
	DistanceMiles  float64 `json:"distance_miles"`
}

// StartTripResponse is the HTTP response for starting a trip.
type StartTripResponse struct {
	Job  JobResponse         `json:"job"`
	Trip TripSessionResponse `json:"trip"`
}

// EndTripResponse is the HTTP response for ending a trip.
type EndTripResponse struct {
	Job             JobResponse `json:"job"`
	DurationSeconds int         `json:"duration_seconds"`
	DurationMinutes int         `json:"duration_minutes"`
	Fare            float64     `json:"fare"`
	DriverPayout    float64     `json:"driver_payout"`
}

// ActiveTripResponse is the HTTP response for the live trip view.
type ActiveTripResponse struct {
	Trip           TripSessionResponse `json:"trip"`
	ElapsedSeconds int                 `json:"elapsed_seconds"`
	ElapsedMinutes float64             `json:"elapsed_minutes"`
	EstimatedFare  float64             `json:"estimated_fare"`
}

// RecordPositionResponse is the HTTP response for a position sample.
type RecordPositionResponse struct {
	Trip        TripSessionResponse `json:"trip"`
	AddedMeters float64             `json:"added_meters"`
}

func newTripSessionResponse(s *domain.TripSession) TripSessionResponse {
	return TripSessionResponse{
		JobID:          s.JobID,
		DriverID:       s.DriverID,
		StartedAt:      formatTime(s.StartTime),
		DistanceMeters: s.Tracker.TotalMeters,
		DistanceMiles:  s.Tracker.Miles(),
	}
}

// Start handles POST /v1/jobs/:id/start
func (h *TripHandler) Start(c *gin.Context) {
	driverID, ok := actor(c)
	if !ok {
		return
	}

	result, err := h.tripService.StartTrip(c.Request.Context(), c.Param("id"), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, StartTripResponse{
		Job:  NewJobResponse(result.Job),
		Trip: newTripSessionResponse(result.Session),
	})
}

// End handles POST /v1/jobs/:id/end
func (h *TripHandler) End(c *gin.Context) {
	driverID, ok := actor(c)
	if !ok {
		return
	}

	result, err := h.tripService.EndTrip(c.Request.Context(), c.Param("id"), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, EndTripResponse{
		Job:             NewJobResponse(result.Job),
		DurationSeconds: result.Breakdown.DurationSeconds,
		DurationMinutes: result.Breakdown.DurationMinutes,
		Fare:            result.Breakdown.Fare,
		DriverPayout:    result.Breakdown.DriverPayout,
	})
}

// Active handles GET /v1/trips/active
func (h *TripHandler) Active(c *gin.Context) {
	driverID, ok := actor(c)
	if !ok {
		return
	}

	live, err := h.tripService.ActiveTrip(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ActiveTripResponse{
		Trip:           newTripSessionResponse(live.Session),
		ElapsedSeconds: live.Estimate.ElapsedSeconds,
		ElapsedMinutes: live.Estimate.ElapsedMinutes,
		EstimatedFare:  live.Estimate.Fare,
	})
}

// RecordPosition handles POST /v1/trips/active/positions
func (h *TripHandler) RecordPosition(c *gin.Context) {
	driverID, ok := actor(c)
	if !ok {
		return
	}

	var req RecordPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, added, err := h.tripService.RecordPosition(c.Request.Context(), driverID, *req.Lat, *req.Lng)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, RecordPositionResponse{
		Trip:        newTripSessionResponse(session),
		AddedMeters: added,
	})
}
