// Package cleanup provides data retention for the session store.
package cleanup

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/navimind/navimind/pkg/models"
	"github.com/navimind/navimind/pkg/storage"
)

// Options control the retention policy.
type Options struct {
	// SessionRetention is how long terminal sessions are kept after their
	// last update.
	SessionRetention time.Duration

	// ReplayTTL is how long replay exports are kept.
	ReplayTTL time.Duration

	// Interval between cleanup passes.
	Interval time.Duration
}

// DefaultOptions keeps sessions for 30 days and replays for 7.
func DefaultOptions() Options {
	return Options{
		SessionRetention: 30 * 24 * time.Hour,
		ReplayTTL:        7 * 24 * time.Hour,
		Interval:         time.Hour,
	}
}

// Service periodically enforces retention policies:
//   - Deletes terminal sessions past their retention window
//   - Removes replay exports past their TTL
//
// All operations are idempotent and safe to run from multiple replicas.
type Service struct {
	store storage.Store
	opts  Options
	log   *slog.Logger
	now   func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(store storage.Store, opts Options, logger *slog.Logger) *Service {
	return &Service{store: store, opts: opts, log: logger, now: time.Now}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.log.Info("cleanup service started",
		"session_retention", s.opts.SessionRetention,
		"replay_ttl", s.opts.ReplayTTL,
		"interval", s.opts.Interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single cleanup pass.
func (s *Service) RunOnce(ctx context.Context) {
	s.sweepSessions(ctx)
	s.sweepReplays(ctx)
}

// sweepSessions deletes terminal sessions whose last update is older than
// the retention window. Live sessions are never touched.
func (s *Service) sweepSessions(ctx context.Context) {
	keys, err := s.store.List(ctx, "session:")
	if err != nil {
		s.log.Error("retention: listing sessions failed", "error", err)
		return
	}
	cutoff := s.now().Add(-s.opts.SessionRetention)

	removed := 0
	for _, key := range keys {
		blob, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		sess, err := models.DeserializeSession(blob)
		if err != nil {
			// An undecodable blob is garbage; age it out too.
			s.log.Warn("retention: dropping corrupt session blob", "key", key, "error", err)
			if s.store.Delete(ctx, key) == nil {
				removed++
			}
			continue
		}
		if !sess.ExecutionState.Terminal() || sess.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Error("retention: session delete failed", "key", key, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("retention: removed expired sessions", "count", removed)
	}
}

// sweepReplays deletes replay exports past their TTL.
func (s *Service) sweepReplays(ctx context.Context) {
	keys, err := s.store.List(ctx, "replay:")
	if err != nil {
		s.log.Error("retention: listing replays failed", "error", err)
		return
	}
	cutoff := s.now().Add(-s.opts.ReplayTTL)

	removed := 0
	for _, key := range keys {
		blob, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var rep models.Replay
		if err := json.Unmarshal(blob, &rep); err != nil || rep.ExportedAt.Before(cutoff) {
			if s.store.Delete(ctx, key) == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		s.log.Info("retention: removed expired replays", "count", removed)
	}
}
