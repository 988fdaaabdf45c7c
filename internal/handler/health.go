package handler

import (
	"net/http"

	"threadsim/internal/httputil"
)

// HealthHandler reports process liveness and LLM configuration state
type HealthHandler struct {
	environment   string
	llmConfigured bool
}

// NewHealthHandler creates a new health handler. llmConfigured is false
// when the server came up in degraded mode without a usable provider.
func NewHealthHandler(environment string, llmConfigured bool) *HealthHandler {
	return &HealthHandler{environment: environment, llmConfigured: llmConfigured}
}

// HealthCheck reports service health
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"environment":    h.environment,
		"llm_configured": h.llmConfigured,
	})
}
