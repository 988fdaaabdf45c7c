package handler

import (
	"log/slog"
	"net/http"

	"threadsim/internal/httputil"
	"threadsim/internal/service/sim"
)

// MessageHandler handles comment-tree HTTP requests
type MessageHandler struct {
	sim    *sim.Service
	logger *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(simService *sim.Service, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{sim: simService, logger: logger}
}

// GetMessages returns the thread's full comment tree
// GET /api/threads/{id}/messages
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	threadID, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}

	roots, err := h.sim.Messages(r.Context(), threadID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, roots)
}

// PostComment inserts a user comment and schedules the persona response
// POST /api/threads/{id}/messages
//
// Returns 202 with the inserted message: the persona reply arrives
// asynchronously over the thread's event stream.
func (h *MessageHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	threadID, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}

	var req sim.PostCommentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.sim.PostComment(r.Context(), threadID, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusAccepted, msg)
}

// VoteRequest selects the vote direction.
type VoteRequest struct {
	Up bool `json:"up"`
}

// Vote applies an upvote or downvote to a message
// POST /api/threads/{id}/messages/{messageID}/vote
func (h *MessageHandler) Vote(w http.ResponseWriter, r *http.Request) {
	threadID, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}
	messageID, ok := PathParam(w, r, "messageID", "Message ID")
	if !ok {
		return
	}

	var req VoteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.sim.Vote(r.Context(), threadID, messageID, req.Up); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleReplyEditorRequest scopes the toggle to a nested reply. With an
// empty parent the target message is a root comment.
type ToggleReplyEditorRequest struct {
	ParentID string `json:"parent_id,omitempty"`
}

// ToggleReplyEditor opens or closes the inline reply editor on a message
// POST /api/threads/{id}/messages/{messageID}/reply-editor
func (h *MessageHandler) ToggleReplyEditor(w http.ResponseWriter, r *http.Request) {
	threadID, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}
	messageID, ok := PathParam(w, r, "messageID", "Message ID")
	if !ok {
		return
	}

	var req ToggleReplyEditorRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	parentID, replyID := messageID, ""
	if req.ParentID != "" {
		parentID, replyID = req.ParentID, messageID
	}

	if err := h.sim.ToggleReplyEditor(r.Context(), threadID, parentID, replyID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
