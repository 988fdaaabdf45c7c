package handler

import (
	"log/slog"
	"net/http"
	"time"

	"threadsim/internal/handler/sse"
	"threadsim/internal/httputil"
	"threadsim/internal/service/stream"
	"threadsim/internal/service/thread"
)

// keepAliveInterval is how often an idle SSE connection gets a comment
// ping so proxies do not cut it off.
const keepAliveInterval = 10 * time.Second

// EventsHandler streams thread turn events over Server-Sent Events
type EventsHandler struct {
	threads     *thread.Service
	broadcaster *stream.Broadcaster
	logger      *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(threads *thread.Service, broadcaster *stream.Broadcaster, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{threads: threads, broadcaster: broadcaster, logger: logger}
}

// StreamEvents handles GET /api/threads/{id}/events
// Streams turn events for one thread until the client disconnects.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	threadID, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}
	if _, err := h.threads.Get(r.Context(), threadID); err != nil {
		handleError(w, err)
		return
	}

	writer, ok := sse.NewWriter(w)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	clientID, events := h.broadcaster.Subscribe(threadID)
	defer h.broadcaster.Unsubscribe(threadID, clientID)

	h.logger.Info("SSE connection opened",
		"thread_id", threadID,
		"client_id", clientID,
		"remote_addr", r.RemoteAddr,
	)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE connection closed", "thread_id", threadID, "client_id", clientID)
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				h.logger.Warn("keep-alive write failed, closing stream",
					"thread_id", threadID,
					"client_id", clientID,
					"error", err,
				)
				return
			}
		case event, open := <-events:
			if !open {
				return
			}
			if err := writer.WriteEvent(event.Type, event.Data); err != nil {
				h.logger.Warn("event write failed, closing stream",
					"thread_id", threadID,
					"client_id", clientID,
					"error", err,
				)
				return
			}
		}
	}
}
