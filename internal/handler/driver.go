package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	internalRedis "minuteride/internal/redis"
	"minuteride/internal/service"
)

// DriverHandler handles HTTP requests for the driver directory.
type DriverHandler struct {
	dispatchService *service.DispatchService
	locations       internalRedis.LocationStoreInterface
}

// NewDriverHandler creates a new DriverHandler. locations may be nil.
func NewDriverHandler(dispatchService *service.DispatchService, locations internalRedis.LocationStoreInterface) *DriverHandler {
	return &DriverHandler{
		dispatchService: dispatchService,
		locations:       locations,
	}
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone_number,omitempty"`
	SMSEnabled bool   `json:"sms_notifications_enabled"`
	HasPush    bool   `json:"has_push"`
}

// List handles GET /v1/drivers
func (h *DriverHandler) List(c *gin.Context) {
	drivers, err := h.dispatchService.ListDrivers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, DriverResponse{
			ID:         d.ID,
			FullName:   d.FullName,
			Phone:      d.Phone,
			SMSEnabled: d.SMSEnabled,
			HasPush:    d.ExpoPushToken != "" || d.FCMToken != "",
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// Positions handles GET /v1/drivers/positions
func (h *DriverHandler) Positions(c *gin.Context) {
	if h.locations == nil {
		respondJSON(c, http.StatusOK, []internalRedis.DriverLocation{})
		return
	}

	positions, err := h.locations.Positions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, positions)
}
