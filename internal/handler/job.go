package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"minuteride/internal/domain"
	"minuteride/internal/lifecycle"
	"minuteride/internal/middleware"
	"minuteride/internal/service"
)

// JobHandler handles HTTP requests for the job board.
type JobHandler struct {
	dispatchService *service.DispatchService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(dispatchService *service.DispatchService) *JobHandler {
	return &JobHandler{dispatchService: dispatchService}
}

// CreateJobRequest is the HTTP request body for creating a job.
type CreateJobRequest struct {
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`
	Notes   string `json:"notes,omitempty"`
}

// AssignJobRequest is the HTTP request body for assigning a job.
type AssignJobRequest struct {
	DriverID string `json:"driver_id"`
}

// SetStatusRequest is the HTTP request body for a status override.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// JobResponse is the HTTP representation of a job.
type JobResponse struct {
	ID               string   `json:"id"`
	Status           string   `json:"status"`
	Pickup           string   `json:"pickup"`
	Dropoff          string   `json:"dropoff"`
	Notes            string   `json:"notes,omitempty"`
	AssignedDriverID string   `json:"assigned_driver_id,omitempty"`
	CreatedByID      string   `json:"created_by_id,omitempty"`
	Claimable        bool     `json:"claimable"`
	DistanceMeters   *int     `json:"distance_meters,omitempty"`
	DurationSeconds  *int     `json:"duration_seconds,omitempty"`
	DurationMinutes  *int     `json:"duration_minutes,omitempty"`
	Fare             *float64 `json:"fare,omitempty"`
	DriverPayout     *float64 `json:"driver_payout,omitempty"`
	StartedAt        string   `json:"started_at,omitempty"`
	EndedAt          string   `json:"ended_at,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// ClaimJobResponse is the HTTP response for a claim attempt.
type ClaimJobResponse struct {
	Claimed bool        `json:"claimed"`
	Job     JobResponse `json:"job"`
}

// NewJobResponse converts a job for the wire.
func NewJobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:               job.ID,
		Status:           string(job.Status),
		Pickup:           job.Pickup,
		Dropoff:          job.Dropoff,
		Notes:            job.Notes,
		AssignedDriverID: job.AssignedDriverID,
		CreatedByID:      job.CreatedByID,
		Claimable:        lifecycle.Claimable(job),
		DistanceMeters:   job.DistanceMeters,
		DurationSeconds:  job.DurationSeconds,
		DurationMinutes:  job.DurationMinutes,
		Fare:             job.Fare,
		DriverPayout:     job.DriverPayout,
		StartedAt:        formatTime(job.StartedAt),
		EndedAt:          formatTime(job.EndedAt),
		CreatedAt:        formatTime(job.CreatedAt),
		UpdatedAt:        formatTime(job.UpdatedAt),
	}
}

// NewJobListResponse converts a job list for the wire.
func NewJobListResponse(jobs []*domain.Job) []JobResponse {
	response := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		response = append(response, NewJobResponse(job))
	}
	return response
}

// Create handles POST /v1/jobs
func (h *JobHandler) Create(c *gin.Context) {
	dispatcherID, ok := actor(c)
	if !ok {
		return
	}

	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	job, err := h.dispatchService.CreateJob(c.Request.Context(), service.CreateJobRequest{
		DispatcherID: dispatcherID,
		Pickup:       req.Pickup,
		Dropoff:      req.Dropoff,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, NewJobResponse(job))
}

// List handles GET /v1/jobs
func (h *JobHandler) List(c *gin.Context) {
	a, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: middleware.ErrUnauthorized.Error()})
		return
	}

	jobs, err := h.dispatchService.ListJobs(c.Request.Context(), a)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, NewJobListResponse(jobs))
}

// Get handles GET /v1/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	a, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: middleware.ErrUnauthorized.Error()})
		return
	}

	job, err := h.dispatchService.GetJob(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, NewJobResponse(job))
}

// Assign handles POST /v1/jobs/:id/assign
func (h *JobHandler) Assign(c *gin.Context) {
	var req AssignJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	job, err := h.dispatchService.AssignJob(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, NewJobResponse(job))
}

// Claim handles POST /v1/jobs/:id/claim
// A lost race is not an error: claimed is false and the job shows its owner.
func (h *JobHandler) Claim(c *gin.Context) {
	driverID, ok := actor(c)
	if !ok {
		return
	}

	result, err := h.dispatchService.ClaimJob(c.Request.Context(), c.Param("id"), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ClaimJobResponse{Claimed: result.Claimed, Job: NewJobResponse(result.Job)})
}

// SetStatus handles POST /v1/jobs/:id/status
func (h *JobHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	job, err := h.dispatchService.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, NewJobResponse(job))
}
