package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if GAFFER_CONFIG is set
//  3. env (prefix GAFFER_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("GAFFER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrLoadConfig)
		}
	}

	// Environment variables: GAFFER_ADDR, GAFFER_SUGGESTION_COUNT, ...
	// Map env keys like GAFFER_SUGGESTION_COUNT -> suggestion_count (flat
	// keys, underscores preserved to match koanf tags on the struct).
	envProvider := env.Provider("GAFFER_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "gaffer_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrLoadConfig)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrLoadConfig)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	}
	if c.SuggestionCount <= 0 {
		return fmt.Errorf("suggestion_count must be positive: %w", ErrInvalidConfig)
	}
	if c.LookaheadWindow <= 0 {
		return fmt.Errorf("lookahead_window must be positive: %w", ErrInvalidConfig)
	}
	var sum float64
	for name, w := range c.ScoreWeights {
		if w < 0 {
			return fmt.Errorf("score weight %q is negative: %w", name, ErrInvalidConfig)
		}
		sum += w
	}
	if len(c.ScoreWeights) > 0 && sum <= 0 {
		return fmt.Errorf("score weights sum to zero: %w", ErrInvalidConfig)
	}
	if c.ScriptedLatencyMinMS > c.ScriptedLatencyMaxMS {
		return fmt.Errorf("scripted latency bounds inverted: %w", ErrInvalidConfig)
	}
	return nil
}
