package testsession

import "time"

// Config holds configuration for the session test
type Config struct {
	BaseURL   string        // Base URL of the service
	ManagerID int           // Manager whose roster the session refines
	DataDir   string        // Snapshot directory to seed before the test (empty skips seeding)
	Feedback  string        // Feedback text for the regeneration turn
	Replaces  int           // Number of single-suggestion replacement turns
	Timeout   time.Duration // HTTP request timeout
	LogFile   string        // Log file for test output
	Verbose   bool          // Enable verbose logging
}

// Athlete mirrors the API's athlete view
type Athlete struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Team       string `json:"team"`
	Role       string `json:"role"`
	CostTenths int    `json:"cost_tenths"`
}

// Captaincy mirrors the API's captaincy view
type Captaincy struct {
	CaptainID       int    `json:"captain_id"`
	CaptainName     string `json:"captain_name"`
	ViceCaptainID   int    `json:"vice_captain_id"`
	ViceCaptainName string `json:"vice_captain_name"`
}

// Suggestion mirrors the API's suggestion view
type Suggestion struct {
	Priority        int        `json:"priority"`
	Out             Athlete    `json:"out"`
	In              Athlete    `json:"in"`
	ProjectedGain   float64    `json:"projected_gain"`
	CostDeltaTenths int        `json:"cost_delta_tenths"`
	BankAfterTenths int        `json:"bank_after_tenths"`
	Rationale       string     `json:"rationale"`
	Captaincy       *Captaincy `json:"captaincy,omitempty"`
}

// SuggestionSet mirrors the API's set view
type SuggestionSet struct {
	CreatedAt   time.Time    `json:"created_at"`
	Gameweek    int          `json:"gameweek"`
	Suggestions []Suggestion `json:"suggestions"`
}

// SessionResponse is the body returned by session-mutating endpoints
type SessionResponse struct {
	SessionID string        `json:"session_id"`
	State     string        `json:"state"`
	Set       SuggestionSet `json:"set"`
}

// SessionDetail is the body returned by GET /sessions/{id}
type SessionDetail struct {
	SessionID string        `json:"session_id"`
	ManagerID int           `json:"manager_id"`
	State     string        `json:"state"`
	Turns     []Turn        `json:"turns"`
	Set       SuggestionSet `json:"set"`
}

// Turn mirrors the API's turn view
type Turn struct {
	Kind     string `json:"kind"`
	Ok       bool   `json:"ok"`
	Feedback string `json:"feedback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Stats holds test statistics
type Stats struct {
	TurnsRun          int
	TurnsFailed       int
	SuggestionsSeen   int
	ReplacesAttempted int
	ReplacesApplied   int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
