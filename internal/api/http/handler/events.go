package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/EternisAI/orca/internal/api/http/dto"
	"github.com/EternisAI/orca/internal/audit"
	"github.com/gin-gonic/gin"
)

type EventReader interface {
	List(ctx context.Context, clientID string, limit int) ([]audit.Event, error)
}

type EventHandler struct {
	events EventReader
}

func NewEventHandler(events EventReader) *EventHandler {
	return &EventHandler{events: events}
}

// ListEvents returns dispatch events, newest first
// GET /api/v1/events?client_id=&limit=
func (h *EventHandler) ListEvents(c *gin.Context) {
	limit, ok := queryInt(c, "limit", audit.DefaultListLimit)
	if !ok {
		return
	}
	limit = min(limit, maxPageSize)
	clientID := c.Query("client_id")

	events, err := h.events.List(c.Request.Context(), clientID, limit)
	if err != nil {
		slog.Error("Failed to list dispatch events", "error", err, "client_id", clientID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	responses := make([]dto.EventResponse, len(events))
	for i, e := range events {
		responses[i] = dto.EventResponse{
			ID:        e.ID,
			CreatedAt: e.CreatedAt,
			ClientID:  e.ClientID,
			ClientIP:  e.ClientIP,
			Command:   e.Command,
			Response:  e.Response,
			Files:     e.Files,
		}
	}

	c.JSON(http.StatusOK, dto.ListEventsResponse{Events: responses, Count: len(responses)})
}
