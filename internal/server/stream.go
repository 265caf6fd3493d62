package server

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	streamEventRowInsert = "row-insert"
	streamEventHeartbeat = "heartbeat"

	heartbeatInterval = 25 * time.Second
)

type streamEventPayload struct {
	ConferenceID string `json:"conference_id"`
	Table        string `json:"table"`
	RowID        string `json:"row_id"`
	Seq          int64  `json:"seq"`
	OccurredAtS  int64  `json:"occurred_at_s"`
}

// handleStream bridges the change-feed dispatcher onto a server-sent event
// stream. The subscription dies with the request context.
func (h *httpHandler) handleStream(c *gin.Context) {
	conferenceID := c.Param("id")
	stream, cancel := h.dispatcher.Subscribe(c.Request.Context(), conferenceID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(streamEventRowInsert, streamEventPayload{
				ConferenceID: message.ConferenceID,
				Table:        message.Table,
				RowID:        message.RowID,
				Seq:          message.Seq,
				OccurredAtS:  message.OccurredAt.UTC().Unix(),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(streamEventHeartbeat, time.Now().UTC().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
