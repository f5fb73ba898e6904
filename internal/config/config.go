// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"math"
	"time"
)

// RiskConfig tunes the risk classifier.
type RiskConfig struct {
	// ThreatWeight, LocationWeight and DriverWeight combine the factor
	// scores. They must sum to 1.
	ThreatWeight   float64 `koanf:"threat_weight"`
	LocationWeight float64 `koanf:"location_weight"`
	DriverWeight   float64 `koanf:"driver_weight"`

	// MediumThreshold and HighThreshold bound the level bands, inclusive on
	// the low end.
	MediumThreshold float64 `koanf:"medium_threshold"`
	HighThreshold   float64 `koanf:"high_threshold"`

	// Rounding selects how the weighted total is rounded: nearest or floor.
	Rounding string `koanf:"rounding"`
}

// EscalationConfig tunes the incident escalator.
type EscalationConfig struct {
	// ResolveAfterLows is the number of consecutive Low assessments that
	// close an escalation episode.
	ResolveAfterLows int `koanf:"resolve_after_lows"`
}

// SessionConfig bounds per-session resources.
type SessionConfig struct {
	// InflightLimit caps admitted-but-uncommitted slices per session.
	InflightLimit int `koanf:"inflight_limit"`

	// IdleTimeout closes sessions with no slice activity.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// MaxActive caps concurrently active sessions.
	MaxActive int `koanf:"max_active"`
}

// ExternalConfig bounds calls to external collaborators.
type ExternalConfig struct {
	// MaxConcurrentCalls is the global cap on in-flight external calls
	// shared across all sessions.
	MaxConcurrentCalls int `koanf:"max_concurrent_calls"`
}

// StageConfig is one stage's retry budget.
type StageConfig struct {
	Attempts int           `koanf:"attempts"`
	Timeout  time.Duration `koanf:"timeout"`
	Backoff  time.Duration `koanf:"backoff"`
}

// StagesConfig holds the per-dependency retry budgets.
type StagesConfig struct {
	Store      StageConfig `koanf:"store"`
	Transcribe StageConfig `koanf:"transcribe"`
	Threat     StageConfig `koanf:"threat"`
	Location   StageConfig `koanf:"location"`
	Driver     StageConfig `koanf:"driver"`
}

// PersistenceConfig tunes the asynchronous assessment persistence retry.
type PersistenceConfig struct {
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// LanguageHint is passed to the transcription gateway.
	LanguageHint string `koanf:"language_hint"`

	Risk        RiskConfig        `koanf:"risk"`
	Escalation  EscalationConfig  `koanf:"escalation"`
	Session     SessionConfig     `koanf:"session"`
	External    ExternalConfig    `koanf:"external"`
	Stages      StagesConfig      `koanf:"stage"`
	Persistence PersistenceConfig `koanf:"persistence"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		Addr:         ":9080",
		LanguageHint: "en-US",
		Risk: RiskConfig{
			ThreatWeight:    0.6,
			LocationWeight:  0.3,
			DriverWeight:    0.1,
			MediumThreshold: 40,
			HighThreshold:   70,
			Rounding:        "nearest",
		},
		Escalation: EscalationConfig{
			ResolveAfterLows: 3,
		},
		Session: SessionConfig{
			InflightLimit: 16,
			IdleTimeout:   5 * time.Minute,
			MaxActive:     10_000,
		},
		External: ExternalConfig{
			MaxConcurrentCalls: 64,
		},
		Stages: StagesConfig{
			Store:      StageConfig{Attempts: 3, Timeout: 5 * time.Second, Backoff: 200 * time.Millisecond},
			Transcribe: StageConfig{Attempts: 3, Timeout: 10 * time.Second, Backoff: 200 * time.Millisecond},
			Threat:     StageConfig{Attempts: 2, Timeout: 8 * time.Second, Backoff: 200 * time.Millisecond},
			Location:   StageConfig{Attempts: 2, Timeout: 3 * time.Second, Backoff: 200 * time.Millisecond},
			Driver:     StageConfig{Attempts: 2, Timeout: 3 * time.Second, Backoff: 200 * time.Millisecond},
		},
		Persistence: PersistenceConfig{
			RetryAttempts: 5,
			RetryBackoff:  time.Second,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	r := c.Risk
	if r.ThreatWeight < 0 || r.LocationWeight < 0 || r.DriverWeight < 0 {
		return fmt.Errorf("%w: risk weights must be non-negative", ErrInvalidConfig)
	}
	if sum := r.ThreatWeight + r.LocationWeight + r.DriverWeight; math.Abs(sum-1) > 0.001 {
		return fmt.Errorf("%w: risk weights must sum to 1, got %.3f", ErrInvalidConfig, sum)
	}
	if r.MediumThreshold <= 0 || r.MediumThreshold >= r.HighThreshold || r.HighThreshold > 100 {
		return fmt.Errorf("%w: thresholds must satisfy 0 < medium < high <= 100", ErrInvalidConfig)
	}
	if r.Rounding != "nearest" && r.Rounding != "floor" {
		return fmt.Errorf("%w: rounding must be nearest or floor", ErrInvalidConfig)
	}
	if c.Escalation.ResolveAfterLows <= 0 {
		return fmt.Errorf("%w: escalation.resolve_after_lows must be positive", ErrInvalidConfig)
	}
	if c.Session.InflightLimit <= 0 {
		return fmt.Errorf("%w: session.inflight_limit must be positive", ErrInvalidConfig)
	}
	if c.External.MaxConcurrentCalls <= 0 {
		return fmt.Errorf("%w: external.max_concurrent_calls must be positive", ErrInvalidConfig)
	}
	return nil
}
