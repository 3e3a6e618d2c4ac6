package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"minuteride/internal/middleware"
	ws "minuteride/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamHandler upgrades authenticated requests to the job board feed.
type StreamHandler struct {
	hub *ws.Hub
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(hub *ws.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Connect handles GET /v1/stream
func (h *StreamHandler) Connect(c *gin.Context) {
	a, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: middleware.ErrUnauthorized.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		_ = c.Error(err)
		return
	}

	client := ws.NewClient(a, conn, h.hub)
	h.hub.Register(client)
	h.hub.SendInitial(c.Request.Context(), client)

	go client.WritePump()
	go client.ReadPump()
}
