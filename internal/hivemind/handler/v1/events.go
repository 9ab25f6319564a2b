package v1

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/hivelink/internal/hivemind/service/stream"
	"github.com/kiosk404/hivelink/internal/pkg/core"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// EventHandler serves the per-session server-sent-event stream.
type EventHandler struct {
	streams *stream.Manager
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(streams *stream.Manager) *EventHandler {
	return &EventHandler{streams: streams}
}

// Stream handles GET /v1/sessions/:id/events.
//
// Frames buffered since the last run started are replayed first. The response ends
// when the run reaches a terminal event; a client that disconnects early closes the
// session stream.
func (h *EventHandler) Stream(c *gin.Context) {
	id := c.Param("id")
	st, err := h.streams.CreateStream(id)
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrNoStream, "attach to session %q", id), nil)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	w := c.Writer
	w.WriteHeader(200)
	w.Flush()

	ctx := c.Request.Context()
	for {
		f, err := st.Next(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			logger.Debug("[Events] client left session %s: %v", id, err)
			st.Cancel()
			return
		}
		if _, err := f.WriteTo(w); err != nil {
			logger.Warn("[Events] write to session %s failed: %v", id, err)
			st.Cancel()
			return
		}
		w.Flush()
	}
}
