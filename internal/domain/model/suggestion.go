package model

import "time"

// Captaincy is an optional armband recommendation attached to a suggestion.
type Captaincy struct {
	CaptainID       int
	CaptainName     string
	ViceCaptainID   int
	ViceCaptainName string
}

// Suggestion is one proposed single swap: one athlete out, one in.
// Each suggestion is an alternative transaction, not part of a combined one.
type Suggestion struct {
	Out           Athlete
	In            Athlete
	Priority      int // 1 = highest
	ProjectedGain float64
	Rationale     string
	Captaincy     *Captaincy
	BankAfter     int // tenths, bank remaining if this swap alone is executed
}

// CostDelta returns the net cost change of the swap in tenths.
func (s Suggestion) CostDelta() int {
	return s.In.Cost - s.Out.Cost
}

// Equal reports whether two suggestions propose the identical swap with the
// identical rationale. Used to verify pinned slots survive a turn verbatim.
func (s Suggestion) Equal(o Suggestion) bool {
	return s.Out.ID == o.Out.ID &&
		s.In.ID == o.In.ID &&
		s.Priority == o.Priority &&
		s.Rationale == o.Rationale
}

// SuggestionSet is the ordered set of suggestions emitted together in one
// turn. A new set is produced on every turn; older sets stay untouched.
type SuggestionSet struct {
	CreatedAt   time.Time
	Gameweek    int
	Suggestions []Suggestion
}

// Clone returns a deep copy so callers can hold a set across turns without
// aliasing the session's current one.
func (s SuggestionSet) Clone() SuggestionSet {
	out := SuggestionSet{CreatedAt: s.CreatedAt, Gameweek: s.Gameweek}
	out.Suggestions = make([]Suggestion, len(s.Suggestions))
	copy(out.Suggestions, s.Suggestions)
	return out
}
