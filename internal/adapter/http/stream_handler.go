package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"creditflow-backend/internal/domain/event"
	"creditflow-backend/internal/domain/loan"
	"creditflow-backend/internal/notify"

	"github.com/labstack/echo/v4"
)

// StreamHandler serves notifications as server-sent events.
type StreamHandler struct {
	hub       *notify.Hub
	heartbeat time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func NewStreamHandler(hub *notify.Hub, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &StreamHandler{hub: hub, heartbeat: heartbeat, done: make(chan struct{})}
}

// Close ends every open stream. Server shutdown waits for handlers to
// return, and a stream otherwise lives until its client leaves.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Stream joins the caller's applicant group, and the reviewers group for
// reviewers, until the client disconnects or Close is called. Events published while the
// client is away are not replayed.
func (h *StreamHandler) Stream(c echo.Context) error {
	actor := actorOf(c)
	if actor.UserID == "" {
		return writeError(c, loan.ErrUnauthorized)
	}
	groups := []string{event.ApplicantGroup(actor.UserID)}
	if actor.IsReviewer {
		groups = append(groups, event.ReviewersGroup)
	}
	sub := h.hub.Subscribe(groups...)
	defer sub.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	// browsers reconnect after this many ms
	fmt.Fprint(w, "retry: 2000\n\n")
	w.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return nil
			}
			w.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
