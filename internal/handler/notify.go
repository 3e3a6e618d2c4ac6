package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"minuteride/internal/service"
)

const maxNotifyBody = 64 << 10

// NewJobNotifier texts drivers about a new job.
type NewJobNotifier interface {
	NotifyNewJob(ctx context.Context, pickup, dropoff string) (*service.DeliveryReport, error)
}

// NotifyHandler handles the manual new-job SMS trigger.
type NotifyHandler struct {
	notifier NewJobNotifier
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(notifier NewJobNotifier) *NotifyHandler {
	return &NotifyHandler{notifier: notifier}
}

// NotifyDriversRequest is the optional body of a notify call.
type NotifyDriversRequest struct {
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`
}

// NotifyDriversResponse reports a finished fan-out.
type NotifyDriversResponse struct {
	OK     bool `json:"ok"`
	Sent   int  `json:"sent"`
	Failed int  `json:"failed"`
}

// NotifyDriversNewJob handles POST /api/notify-drivers-new-job
// A missing or malformed body is not an error; the message then reads N/A.
func (h *NotifyHandler) NotifyDriversNewJob(c *gin.Context) {
	var req NotifyDriversRequest
	if raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotifyBody)); err == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, &req)
	}

	report, err := h.notifier.NotifyNewJob(c.Request.Context(), req.Pickup, req.Dropoff)
	if err != nil {
		var cfgErr *service.ConfigError
		if errors.As(err, &cfgErr) || errors.Is(err, service.ErrFetchRecipients) {
			respondError(c, err)
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal error sending SMS"})
		return
	}

	if report.Recipients == 0 {
		respondJSON(c, http.StatusOK, gin.H{"message": "No drivers with SMS enabled"})
		return
	}

	respondJSON(c, http.StatusOK, NotifyDriversResponse{OK: true, Sent: report.Sent, Failed: report.Failed})
}
