// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/gaffer/internal/adapters/generative"
	"github.com/okian/gaffer/internal/adapters/sessionstore"
	service "github.com/okian/gaffer/internal/app"
	"github.com/okian/gaffer/internal/domain/analysis"
	"github.com/okian/gaffer/internal/domain/candidates"
	"github.com/okian/gaffer/internal/domain/composer"
	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/internal/domain/session"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// OpenSession loads the manager's roster and runs the first turn.
	OpenSession(ctx context.Context, managerID int) (string, model.SuggestionSet, error)

	// SessionFeedback runs a feedback turn on an existing session.
	SessionFeedback(ctx context.Context, id, feedback string) (model.SuggestionSet, error)

	// SessionReplace regenerates one suggestion, named by its swap pair.
	SessionReplace(ctx context.Context, id string, outID, inID int) (model.SuggestionSet, error)

	// SessionState returns a point-in-time view of a session.
	SessionState(ctx context.Context, id string) (service.SessionView, error)

	// CloseSession drops a session.
	CloseSession(ctx context.Context, id string)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		sessionsHandler: NewSessionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandleSessions, "sessions"))
	mux.HandleFunc("/sessions/", MetricsMiddleware(s.sessionsHandler.HandleSession, "session"))
}

// Wire shapes returned to API consumers. Costs stay in tenths on the wire;
// presentation is the client's concern.

type athleteView struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Team       string `json:"team"`
	Role       string `json:"role"`
	CostTenths int    `json:"cost_tenths"`
}

type captaincyView struct {
	CaptainID       int    `json:"captain_id"`
	CaptainName     string `json:"captain_name"`
	ViceCaptainID   int    `json:"vice_captain_id,omitempty"`
	ViceCaptainName string `json:"vice_captain_name,omitempty"`
}

type suggestionView struct {
	Priority        int            `json:"priority"`
	Out             athleteView    `json:"out"`
	In              athleteView    `json:"in"`
	ProjectedGain   float64        `json:"projected_gain"`
	CostDeltaTenths int            `json:"cost_delta_tenths"`
	BankAfterTenths int            `json:"bank_after_tenths"`
	Rationale       string         `json:"rationale"`
	Captaincy       *captaincyView `json:"captaincy,omitempty"`
}

type setView struct {
	CreatedAt   time.Time        `json:"created_at"`
	Gameweek    int              `json:"gameweek"`
	Suggestions []suggestionView `json:"suggestions"`
}

type sessionResponse struct {
	SessionID string  `json:"session_id"`
	State     string  `json:"state"`
	Set       setView `json:"set"`
}

type sessionDetail struct {
	SessionID string     `json:"session_id"`
	ManagerID int        `json:"manager_id"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	Turns     []turnView `json:"turns"`
	Set       setView    `json:"set"`
}

type turnView struct {
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
	Ok       bool      `json:"ok"`
	Feedback string    `json:"feedback,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func toAthleteView(a model.Athlete) athleteView {
	return athleteView{
		ID:         a.ID,
		Name:       a.Name,
		Team:       a.TeamName,
		Role:       string(a.Role),
		CostTenths: a.Cost,
	}
}

func toSetView(set model.SuggestionSet) setView {
	out := setView{CreatedAt: set.CreatedAt, Gameweek: set.Gameweek}
	for _, sug := range set.Suggestions {
		v := suggestionView{
			Priority:        sug.Priority,
			Out:             toAthleteView(sug.Out),
			In:              toAthleteView(sug.In),
			ProjectedGain:   sug.ProjectedGain,
			CostDeltaTenths: sug.CostDelta(),
			BankAfterTenths: sug.BankAfter,
			Rationale:       sug.Rationale,
		}
		if sug.Captaincy != nil {
			v.Captaincy = &captaincyView{
				CaptainID:       sug.Captaincy.CaptainID,
				CaptainName:     sug.Captaincy.CaptainName,
				ViceCaptainID:   sug.Captaincy.ViceCaptainID,
				ViceCaptainName: sug.Captaincy.ViceCaptainName,
			}
		}
		out.Suggestions = append(out.Suggestions, v)
	}
	return out
}

func toTurnViews(turns []session.Turn) []turnView {
	out := make([]turnView, len(turns))
	for i, t := range turns {
		out[i] = turnView{
			Kind:     string(t.Kind),
			At:       t.At,
			Ok:       t.Ok,
			Feedback: t.Feedback,
			Error:    t.Err,
		}
	}
	return out
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates upstream sentinel kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, sessionstore.ErrStoreFull):
		writeError(w, http.StatusTooManyRequests, "store_full", err)
	case errors.Is(err, session.ErrEmptySession),
		errors.Is(err, session.ErrAlreadyGenerated),
		errors.Is(err, session.ErrUnknownSuggestion):
		writeError(w, http.StatusConflict, "invalid_turn", err)
	case errors.Is(err, analysis.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_data", err)
	case errors.Is(err, candidates.ErrNoLegalCandidate),
		errors.Is(err, composer.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "candidate_exhaustion", err)
	case errors.Is(err, composer.ErrGenerationValidation):
		writeError(w, http.StatusBadGateway, "generation_failed", err)
	case errors.Is(err, generative.ErrTimeout), errors.Is(err, generative.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "backend_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
