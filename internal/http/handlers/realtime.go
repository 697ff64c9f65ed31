package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/artforge-backend/internal/platform/logger"
	"github.com/yungbote/artforge-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(hub *realtime.SSEHub, log *logger.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, log: log.With("handler", "RealtimeHandler")}
}

// GET /api/events
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, realtime.ChannelGenerations)
	h.log.Debug("SSE stream open", "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "client_id", client.ID)
}
