// Package config defines session configuration with built-in defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalid marks a rejected session configuration.
var ErrInvalid = errors.New("invalid session config")

// RetryStrategy controls the retry executor wrapped around LLM calls.
type RetryStrategy struct {
	MaxRetries          int      `json:"maxRetries"`
	BackoffMs           int      `json:"backoffMs"`
	BackoffMultiplier   float64  `json:"backoffMultiplier"`
	MaxBackoffMs        int      `json:"maxBackoffMs"`
	RetryableCategories []string `json:"retryableCategories"`
}

// CacheStrategy controls the tiered content cache.
type CacheStrategy struct {
	Enabled              bool `json:"enabled"`
	MaxSize              int  `json:"maxSize"`
	TTLMs                int  `json:"ttlMs"`
	CompressionEnabled   bool `json:"compressionEnabled"`
	CompressionThreshold int  `json:"compressionThreshold"`
	WarmingEnabled       bool `json:"warmingEnabled"`
}

// SessionConfig holds all per-session tunables. Values arrive as JSON in the
// create/execute request bodies and are merged over DefaultSessionConfig.
type SessionConfig struct {
	// MaxSteps is the hard cap on planner iterations. On breach the task
	// fails with reason "max_steps_reached".
	MaxSteps int `json:"maxSteps"`

	// EnableVision attaches screenshots to planner prompts when the LLM
	// provider supports image input.
	EnableVision bool `json:"enableVision"`

	// EnableReplay exports a replay record for terminal sessions.
	EnableReplay bool `json:"enableReplay"`

	// StrictSecurity enables the strict guardrail pattern family
	// (emails, phone numbers) in addition to the base family.
	StrictSecurity bool `json:"strictSecurity"`

	Retry RetryStrategy `json:"retryStrategy"`
	Cache CacheStrategy `json:"cacheStrategy"`

	// ToolsEnabled is a whitelist of action types the planner may emit.
	// Empty means the full vocabulary is allowed.
	ToolsEnabled []string `json:"toolsEnabled"`

	// MaxActionsPerStep bounds how many actions the planner may enqueue
	// per iteration.
	MaxActionsPerStep int `json:"maxActionsPerStep"`

	// MaxFailures is the number of consecutive action-result failures
	// before the task is marked failed.
	MaxFailures int `json:"maxFailures"`

	// PlanningInterval forces a fresh strategic plan every N steps,
	// even mid-plan. Zero disables forced refresh.
	PlanningInterval int `json:"planningInterval"`
}

// DefaultSessionConfig returns the built-in configuration.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		MaxSteps:       50,
		EnableVision:   false,
		EnableReplay:   true,
		StrictSecurity: false,
		Retry: RetryStrategy{
			MaxRetries:          3,
			BackoffMs:           1000,
			BackoffMultiplier:   2.0,
			MaxBackoffMs:        30000,
			RetryableCategories: []string{"rate_limit", "network", "timeout", "recoverable"},
		},
		Cache: CacheStrategy{
			Enabled:              true,
			MaxSize:              100,
			TTLMs:                300000,
			CompressionEnabled:   true,
			CompressionThreshold: 1024,
			WarmingEnabled:       false,
		},
		ToolsEnabled:      nil,
		MaxActionsPerStep: 1,
		MaxFailures:       3,
		PlanningInterval:  5,
	}
}

// SessionConfigFromJSON merges a raw JSON config over the defaults. Fields
// absent from the JSON keep their default values, including nested ones —
// json.Unmarshal only overwrites what the document mentions.
func SessionConfigFromJSON(raw json.RawMessage) (*SessionConfig, error) {
	cfg := DefaultSessionConfig()
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *SessionConfig) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("maxSteps must be positive, got %d", c.MaxSteps)
	}
	if c.MaxFailures <= 0 {
		return fmt.Errorf("maxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retryStrategy.maxRetries must be non-negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retryStrategy.backoffMultiplier must be >= 1, got %v", c.Retry.BackoffMultiplier)
	}
	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cacheStrategy.maxSize must be non-negative, got %d", c.Cache.MaxSize)
	}
	if c.MaxActionsPerStep <= 0 {
		return fmt.Errorf("maxActionsPerStep must be positive, got %d", c.MaxActionsPerStep)
	}
	if c.PlanningInterval < 0 {
		return fmt.Errorf("planningInterval must be non-negative, got %d", c.PlanningInterval)
	}
	return nil
}

// ToolAllowed reports whether the planner may emit the given action type.
func (c *SessionConfig) ToolAllowed(actionType string) bool {
	if len(c.ToolsEnabled) == 0 {
		return true
	}
	for _, t := range c.ToolsEnabled {
		if t == actionType {
			return true
		}
	}
	return false
}
