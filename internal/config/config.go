// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer
//   file and environment overrides on top.
// - External errors must be wrapped via this package's sentinel kinds.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SuggestionCount is how many suggestions a full set carries.
	SuggestionCount int `koanf:"suggestion_count"`

	// LookaheadWindow is how many upcoming gameweeks fixture scoring sees.
	LookaheadWindow int `koanf:"lookahead_window"`

	// PerSlotLimit caps ranked candidates per flagged slot.
	PerSlotLimit int `koanf:"per_slot_limit"`

	// MaxPerTeam caps how many squad athletes may share a source team.
	MaxPerTeam int `koanf:"max_per_team"`

	// ScoreWeights maps sub-score names (form, fixture, value, predictive)
	// to their share of the aggregate.
	ScoreWeights map[string]float64 `koanf:"score_weights"`

	// GenerativeEndpoint is the chat-completion URL of the backend. Leave
	// empty to run against the scripted backend.
	GenerativeEndpoint string `koanf:"generative_endpoint"`

	// GenerativeModel names the backend model to request.
	GenerativeModel string `koanf:"generative_model"`

	// GenerativeAPIKey authenticates against the backend.
	GenerativeAPIKey string `koanf:"generative_api_key"`

	// GenerativeTimeoutMS bounds one backend call.
	GenerativeTimeoutMS int `koanf:"generative_timeout_ms"`

	// RetryBackoffMS is the pause before the single backend retry.
	RetryBackoffMS int `koanf:"retry_backoff_ms"`

	// RatePerMinute caps backend calls per minute.
	RatePerMinute int `koanf:"rate_per_minute"`

	// ScriptedLatencyMinMS and ScriptedLatencyMaxMS simulate backend
	// latency bounds when running scripted.
	ScriptedLatencyMinMS int `koanf:"scripted_latency_min_ms"`
	ScriptedLatencyMaxMS int `koanf:"scripted_latency_max_ms"`

	// DataRoot points at the snapshot directory the file provider reads.
	DataRoot string `koanf:"data_root"`

	// MaxSessions caps concurrently live refinement sessions.
	MaxSessions int `koanf:"max_sessions"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		SuggestionCount: 5,
		LookaheadWindow: 5,
		PerSlotLimit:    5,
		MaxPerTeam:      3,
		ScoreWeights: map[string]float64{
			"form":       0.25,
			"fixture":    0.35,
			"value":      0.25,
			"predictive": 0.15,
		},
		GenerativeModel:      "gpt-4o",
		GenerativeTimeoutMS:  30_000,
		RetryBackoffMS:       2_000,
		RatePerMinute:        20,
		ScriptedLatencyMinMS: 80,
		ScriptedLatencyMaxMS: 150,
		DataRoot:             "./data",
		MaxSessions:          1024,
	}
}
