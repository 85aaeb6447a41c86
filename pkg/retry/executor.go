package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/navimind/navimind/pkg/config"
)

// Executor runs operations under a session's retry strategy. The sleep
// function is injectable so tests run without wall-clock delays.
type Executor struct {
	strategy config.RetryStrategy
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewExecutor builds an executor for the given strategy.
func NewExecutor(strategy config.RetryStrategy, logger *slog.Logger) *Executor {
	return &Executor{
		strategy: strategy,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// WithSleep overrides the delay function. Test hook.
func (e *Executor) WithSleep(fn func(context.Context, time.Duration) error) *Executor {
	e.sleep = fn
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff returns the delay before retry attempt k (1-based), capped at the
// strategy maximum.
func (e *Executor) Backoff(attempt int) time.Duration {
	ms := float64(e.strategy.BackoffMs) * math.Pow(e.strategy.BackoffMultiplier, float64(attempt-1))
	if capMs := float64(e.strategy.MaxBackoffMs); ms > capMs {
		ms = capMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Retryable reports whether the strategy retries the given category.
func (e *Executor) Retryable(c Category) bool {
	if Recovery(c) != RecoveryRetry {
		return false
	}
	for _, allowed := range e.strategy.RetryableCategories {
		if Category(allowed) == c {
			return true
		}
	}
	return false
}

// Outcome summarizes one Do run for metrics and session bookkeeping.
type Outcome struct {
	Attempts int
	Retries  int
	Category Category
	Action   RecoveryAction
}

// Do runs op up to 1+maxRetries times. Non-retryable categories fail on the
// first occurrence; retryable ones back off exponentially between attempts.
// On failure the returned error is always a *CategorizedError.
func Do[T any](ctx context.Context, e *Executor, name string, op func(context.Context) (T, error)) (T, Outcome, error) {
	var zero T
	out := Outcome{}
	var lastErr *CategorizedError

	for attempt := 1; attempt <= e.strategy.MaxRetries+1; attempt++ {
		out.Attempts = attempt
		v, err := op(ctx)
		if err == nil {
			out.Action = ""
			return v, out, nil
		}

		lastErr = Categorize(err)
		out.Category = lastErr.Category

		if !e.Retryable(lastErr.Category) {
			out.Action = Recovery(lastErr.Category)
			e.logger.Warn("operation failed, not retryable",
				"op", name, "category", lastErr.Category, "error", err)
			return zero, out, lastErr
		}
		if attempt == e.strategy.MaxRetries+1 {
			break
		}

		delay := e.Backoff(attempt)
		e.logger.Info("retrying operation",
			"op", name, "attempt", attempt, "category", lastErr.Category, "backoff", delay)
		out.Retries++
		if err := e.sleep(ctx, delay); err != nil {
			out.Action = RecoveryAbort
			return zero, out, &CategorizedError{Category: CategoryFatal, Err: err}
		}
	}

	out.Action = Exhausted(lastErr.Category)
	e.logger.Warn("operation failed, retries exhausted",
		"op", name, "attempts", out.Attempts, "category", lastErr.Category)
	return zero, out, lastErr
}
