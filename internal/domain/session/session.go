// Package session tracks one manager's iterative refinement dialogue: the
// current suggestion set, the turn history, and the rule that a failed turn
// never disturbs the last good set.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gaffer/internal/domain/composer"
	"github.com/okian/gaffer/internal/domain/model"
)

// State is the lifecycle position carried by a session.
type State string

const (
	// StateEmpty means no suggestion set has been generated yet.
	StateEmpty State = "empty"
	// StateGenerated means the session holds a current set and accepts
	// refinement turns.
	StateGenerated State = "generated"
	// StateRefining means a turn is executing.
	StateRefining State = "refining"
)

// TurnKind labels an entry in the turn history.
type TurnKind string

const (
	TurnGenerate TurnKind = "generate"
	TurnFeedback TurnKind = "feedback"
	TurnReplace  TurnKind = "replace"
)

// Turn is one completed (or failed) step of the dialogue.
type Turn struct {
	Kind     TurnKind
	At       time.Time
	Ok       bool
	Feedback string // populated for feedback turns
	Err      string // populated for failed turns
}

// TurnRequest is what a session hands the runner for one pipeline pass.
type TurnRequest struct {
	Roster   model.Roster
	Feedback string
	Pins     []composer.Pin
	// ExcludeIn lists athlete ids that must not be proposed as incoming,
	// used so a replace turn cannot re-propose the swap it replaces.
	ExcludeIn []int
}

// Runner executes one full analyze-rank-compose pass. The session never
// touches the pipeline directly; it only sequences turns and guards state.
type Runner interface {
	RunTurn(ctx context.Context, req TurnRequest) (model.SuggestionSet, error)
}

// Session is safe for concurrent use; turns are serialized by an internal
// mutex and a failed turn leaves the current set exactly as it was.
type Session struct {
	ID        string
	ManagerID int
	CreatedAt time.Time

	mu      sync.Mutex
	roster  model.Roster
	state   State
	current model.SuggestionSet
	turns   []Turn
	runner  Runner
}

// New creates an empty session for the given roster.
func New(id string, roster model.Roster, runner Runner) *Session {
	return &Session{
		ID:        id,
		ManagerID: roster.ManagerID,
		CreatedAt: time.Now().UTC(),
		roster:    roster,
		state:     StateEmpty,
		runner:    runner,
	}
}

// Generate runs the first turn. It only works on an empty session; after
// that, Feedback and ReplaceOne drive the dialogue.
func (s *Session) Generate(ctx context.Context) (model.SuggestionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEmpty {
		return model.SuggestionSet{}, ErrAlreadyGenerated
	}
	return s.runTurn(ctx, TurnGenerate, TurnRequest{Roster: s.roster})
}

// Feedback regenerates the whole set weighing the manager's free-text
// feedback. On failure the previous set stays current.
func (s *Session) Feedback(ctx context.Context, feedback string) (model.SuggestionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return model.SuggestionSet{}, ErrEmptySession
	}
	return s.runTurn(ctx, TurnFeedback, TurnRequest{
		Roster:   s.roster,
		Feedback: feedback,
	})
}

// ReplaceOne regenerates exactly the designated suggestion. Every other
// suggestion is pinned to its slot and survives the turn verbatim, and the
// replaced swap is excluded so the turn cannot answer with the same pair.
func (s *Session) ReplaceOne(ctx context.Context, target model.Suggestion) (model.SuggestionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return model.SuggestionSet{}, ErrEmptySession
	}

	slot := -1
	for i, sug := range s.current.Suggestions {
		if sug.Out.ID == target.Out.ID && sug.In.ID == target.In.ID {
			slot = i
			break
		}
	}
	if slot < 0 {
		return model.SuggestionSet{}, fmt.Errorf("out %d in %d: %w", target.Out.ID, target.In.ID, ErrUnknownSuggestion)
	}

	pins := make([]composer.Pin, 0, len(s.current.Suggestions)-1)
	exclude := []int{target.In.ID}
	for i, sug := range s.current.Suggestions {
		if i == slot {
			continue
		}
		pins = append(pins, composer.Pin{Slot: i, Suggestion: sug})
		// Pinned incoming athletes stay excluded too, so the fresh slot
		// cannot collide with a kept one.
		exclude = append(exclude, sug.In.ID)
	}

	return s.runTurn(ctx, TurnReplace, TurnRequest{
		Roster:    s.roster,
		Pins:      pins,
		ExcludeIn: exclude,
	})
}

// runTurn executes one pass under the held lock and appends the outcome to
// the history. Callers must hold s.mu.
func (s *Session) runTurn(ctx context.Context, kind TurnKind, req TurnRequest) (model.SuggestionSet, error) {
	prev := s.state
	s.state = StateRefining

	set, err := s.runner.RunTurn(ctx, req)
	turn := Turn{Kind: kind, At: time.Now().UTC(), Feedback: req.Feedback}
	if err != nil {
		turn.Err = err.Error()
		s.turns = append(s.turns, turn)
		s.state = prev
		return model.SuggestionSet{}, err
	}

	turn.Ok = true
	s.turns = append(s.turns, turn)
	s.current = set
	s.state = StateGenerated
	return set.Clone(), nil
}

// Current returns a copy of the session's current suggestion set.
func (s *Session) Current() model.SuggestionSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Roster returns the roster the session was opened with.
func (s *Session) Roster() model.Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster
}

// Turns returns a copy of the turn history, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}
