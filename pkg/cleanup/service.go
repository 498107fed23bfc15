// Package cleanup provides the background session retention loop.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardrobe-labs/concierge/pkg/config"
	"github.com/wardrobe-labs/concierge/pkg/database"
	"github.com/wardrobe-labs/concierge/pkg/session"
)

// Service periodically enforces retention:
//   - Drops in-memory sessions idle past the configured cutoff
//   - Purges stale persisted snapshots when a database is configured
//
// All operations are idempotent; a missed tick only delays the sweep.
type Service struct {
	retention *config.RetentionConfig
	idleAfter time.Duration
	sessions  *session.Store
	archive   *database.Archive // nil when persistence is disabled

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup service. archive may be nil.
func NewService(retention *config.RetentionConfig, idleAfter time.Duration, sessions *session.Store, archive *database.Archive) *Service {
	return &Service{
		retention: retention,
		idleAfter: idleAfter,
		sessions:  sessions,
		archive:   archive,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"idle_after", s.idleAfter,
		"interval_minutes", s.retention.SweepIntervalMinutes,
		"persistence", s.archive != nil)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(time.Duration(s.retention.SweepIntervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.sweepIdleSessions()
	s.purgePersistedSessions(ctx)
}

func (s *Service) sweepIdleSessions() {
	count := s.sessions.Sweep(s.idleAfter)
	if count > 0 {
		slog.Info("Retention: swept idle sessions", "count", count)
	}
}

func (s *Service) purgePersistedSessions(ctx context.Context) {
	if s.archive == nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.retention.PersistedRetentionDays)
	count, err := s.archive.PurgeIdleBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: persisted session purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: purged persisted sessions", "count", count)
	}
}
