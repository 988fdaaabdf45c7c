package handler

import (
	"log/slog"
	"net/http"

	"threadsim/internal/domain/models"
	"threadsim/internal/httputil"
	"threadsim/internal/service/sim"
	"threadsim/internal/service/thread"
)

// ThreadHandler handles thread HTTP requests
type ThreadHandler struct {
	threads *thread.Service
	sim     *sim.Service
	logger  *slog.Logger
}

// NewThreadHandler creates a new thread handler
func NewThreadHandler(threads *thread.Service, simService *sim.Service, logger *slog.Logger) *ThreadHandler {
	return &ThreadHandler{threads: threads, sim: simService, logger: logger}
}

// ListThreads lists threads, optionally filtered by a search query
// GET /api/threads?q=
func (h *ThreadHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	list, err := h.threads.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, list)
}

// CreateThread creates a new thread
// POST /api/threads
func (h *ThreadHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req models.CreateThreadRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.threads.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, t)
}

// GetThread retrieves a thread by ID
// GET /api/threads/{id}
func (h *ThreadHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}

	t, err := h.threads.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, t)
}

// UpdateThread replaces a thread's editable fields
// PATCH /api/threads/{id}
func (h *ThreadHandler) UpdateThread(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}

	var req models.CreateThreadRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.threads.Update(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, t)
}

// DeleteThread removes a thread and its messages
// DELETE /api/threads/{id}
func (h *ThreadHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}

	if err := h.threads.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	h.sim.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// ClearThread resets a thread back to the welcome message
// POST /api/threads/{id}/clear
func (h *ThreadHandler) ClearThread(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}

	if err := h.sim.ClearThread(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
