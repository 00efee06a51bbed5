// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// SessionsHandler handles the refinement-session routes.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// openSessionRequest mirrors the schema for POST /sessions.
type openSessionRequest struct {
	ManagerID int `json:"manager_id"`
}

func (r openSessionRequest) validate() error {
	if r.ManagerID <= 0 {
		return errors.New("missing or invalid manager_id")
	}
	return nil
}

// feedbackRequest mirrors the schema for POST /sessions/{id}/feedback.
type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (r feedbackRequest) validate() error {
	if strings.TrimSpace(r.Feedback) == "" {
		return errors.New("missing feedback")
	}
	return nil
}

// replaceRequest mirrors the schema for POST /sessions/{id}/replace. The
// target suggestion is named by its swap pair.
type replaceRequest struct {
	OutID int `json:"out_id"`
	InID  int `json:"in_id"`
}

func (r replaceRequest) validate() error {
	if r.OutID <= 0 || r.InID <= 0 {
		return errors.New("missing out_id or in_id")
	}
	return nil
}

// HandleSessions handles POST /sessions requests.
func (h *SessionsHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	const op = "api.open_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	id, set, err := h.deps.OpenSession(r.Context(), req.ManagerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: id,
		State:     "generated",
		Set:       toSetView(set),
	})
}

// HandleSession dispatches /sessions/{id} and its sub-routes.
func (h *SessionsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		h.deps.CloseSession(r.Context(), id)
		w.WriteHeader(http.StatusNoContent)
	case action == "feedback" && r.Method == http.MethodPost:
		h.handleFeedback(w, r, id)
	case action == "replace" && r.Method == http.MethodPost:
		h.handleReplace(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *SessionsHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	view, err := h.deps.SessionState(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionDetail{
		SessionID: view.ID,
		ManagerID: view.ManagerID,
		State:     string(view.State),
		CreatedAt: view.CreatedAt,
		Turns:     toTurnViews(view.Turns),
		Set:       toSetView(view.Current),
	})
}

func (h *SessionsHandler) handleFeedback(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.session_feedback"
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	set, err := h.deps.SessionFeedback(r.Context(), id, req.Feedback)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: id,
		State:     "generated",
		Set:       toSetView(set),
	})
}

func (h *SessionsHandler) handleReplace(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.session_replace"
	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	set, err := h.deps.SessionReplace(r.Context(), id, req.OutID, req.InID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: id,
		State:     "generated",
		Set:       toSetView(set),
	})
}
