// Package retry classifies action and LLM failures and drives bounded
// retries with exponential backoff. Classification is substring based: the
// browser client and the LLM providers both report errors as free text, so
// the category tables key on the phrases they actually emit.
package retry

import (
	"fmt"
	"strings"
)

// Category buckets an error by how the engine should react to it.
type Category string

const (
	CategoryRateLimit         Category = "rate_limit"
	CategoryNetwork           Category = "network"
	CategoryTimeout           Category = "timeout"
	CategoryUserInputRequired Category = "user_input_required"
	CategoryFatal             Category = "fatal"
	CategoryRecoverable       Category = "recoverable"
)

// RecoveryAction is the engine-level reaction to a classified failure.
type RecoveryAction string

const (
	RecoveryRetry RecoveryAction = "retry"
	RecoveryPause RecoveryAction = "pause"
	RecoveryAbort RecoveryAction = "abort"
	RecoverySkip  RecoveryAction = "skip"
)

// classRule maps indicator substrings to a category. Rules are checked in
// order; the first hit wins, so the specific categories precede the
// default.
type classRule struct {
	category   Category
	indicators []string
}

var classRules = []classRule{
	{CategoryRateLimit, []string{"rate limit", "429", "too many requests", "quota exceeded"}},
	{CategoryNetwork, []string{"network", "econnrefused", "econnreset", "fetch failed", "connection refused", "no such host"}},
	{CategoryTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{CategoryUserInputRequired, []string{"captcha", "verification", "login required", "authentication", "two-factor", "2fa"}},
	{CategoryFatal, []string{"forbidden", "unauthorized", "invalid session", "permission denied"}},
}

// Classify buckets an error message. Matching is case-insensitive; anything
// unrecognized is recoverable.
func Classify(errText string) Category {
	lower := strings.ToLower(errText)
	for _, rule := range classRules {
		for _, ind := range rule.indicators {
			if strings.Contains(lower, ind) {
				return rule.category
			}
		}
	}
	return CategoryRecoverable
}

// Recovery returns the engine reaction for a category once retries for it
// are exhausted (or immediately, for the non-retryable categories).
func Recovery(c Category) RecoveryAction {
	switch c {
	case CategoryUserInputRequired:
		return RecoveryPause
	case CategoryFatal:
		return RecoveryAbort
	default:
		return RecoveryRetry
	}
}

// Exhausted maps a retryable category to the engine reaction once its
// retries run out: infrastructure categories abort, plain recoverable
// failures are skipped.
func Exhausted(c Category) RecoveryAction {
	if c == CategoryRecoverable {
		return RecoverySkip
	}
	return RecoveryAbort
}

// CategorizedError wraps an underlying failure with its category so callers
// upstream can branch without re-classifying.
type CategorizedError struct {
	Category Category
	Err      error
}

func (e *CategorizedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Categorize wraps err with its classification. Already-categorized errors
// pass through unchanged.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CategorizedError); ok {
		return ce
	}
	return &CategorizedError{Category: Classify(err.Error()), Err: err}
}
