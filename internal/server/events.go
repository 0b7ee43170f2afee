package server

import (
	"net/http"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/realtime"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleEvents streams activity to the caller as server-sent events until the
// client disconnects. A heartbeat keeps idle proxies from closing the stream.
func (h *httpHandler) handleEvents(c *gin.Context) {
	actor := actorFrom(c)
	ctx := c.Request.Context()
	stream, cancel := h.realtime.Subscribe(ctx, actor.ID)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	h.logger.Debug("event stream opened", zap.String("user_id", actor.ID))
	defer h.logger.Debug("event stream closed", zap.String("user_id", actor.ID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent(message.EventType, message)
			c.Writer.Flush()
		case tick := <-ticker.C:
			c.SSEvent(realtime.EventHeartbeat, realtime.Message{
				EventType: realtime.EventHeartbeat,
				Timestamp: tick.UTC(),
			})
			c.Writer.Flush()
		}
	}
}
