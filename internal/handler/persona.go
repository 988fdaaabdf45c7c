package handler

import (
	"log/slog"
	"net/http"

	"threadsim/internal/domain/models"
	"threadsim/internal/httputil"
	"threadsim/internal/service/persona"
)

// PersonaHandler handles persona HTTP requests
// Follows Clean Architecture: handlers only communicate with services,
// never repositories
type PersonaHandler struct {
	personas *persona.Service
	logger   *slog.Logger
}

// NewPersonaHandler creates a new persona handler
func NewPersonaHandler(personas *persona.Service, logger *slog.Logger) *PersonaHandler {
	return &PersonaHandler{personas: personas, logger: logger}
}

// ListPersonas retrieves the full roster
// GET /api/personas
func (h *PersonaHandler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	list, err := h.personas.List(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, list)
}

// CreatePersona registers a new persona
// POST /api/personas
func (h *PersonaHandler) CreatePersona(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePersonaRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.personas.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, p)
}

// GetPersona retrieves a single persona by ID
// GET /api/personas/{id}
func (h *PersonaHandler) GetPersona(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Persona ID")
	if !ok {
		return
	}

	p, err := h.personas.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, p)
}

// UpdatePersona applies a partial update
// PATCH /api/personas/{id}
func (h *PersonaHandler) UpdatePersona(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Persona ID")
	if !ok {
		return
	}

	var req models.UpdatePersonaRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.personas.Update(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, p)
}

// DeletePersona removes a persona
// DELETE /api/personas/{id}
func (h *PersonaHandler) DeletePersona(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Persona ID")
	if !ok {
		return
	}

	if err := h.personas.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GeneratePersonaRequest is the input for LLM-assisted persona creation.
type GeneratePersonaRequest struct {
	Description string `json:"description"`
}

// GeneratePersona asks the model to draft persona fields from a short
// description. Nothing is persisted; the client reviews and submits the
// result through CreatePersona.
// POST /api/personas/generate
func (h *PersonaHandler) GeneratePersona(w http.ResponseWriter, r *http.Request) {
	var req GeneratePersonaRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields, err := h.personas.GenerateFields(r.Context(), req.Description)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, fields)
}

// GenerateAvatar creates an avatar image for a persona
// POST /api/personas/{id}/avatar
func (h *PersonaHandler) GenerateAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Persona ID")
	if !ok {
		return
	}

	p, err := h.personas.GenerateAvatar(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, p)
}
