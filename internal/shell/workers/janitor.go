package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/lamdp/shiptrack/internal/shell/store"
)

// =============================================================================
// Session Janitor
// =============================================================================

// Janitor removes expired sessions on a fixed interval.
type Janitor struct {
	store    store.Store
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// JanitorConfig holds configuration for the session janitor.
type JanitorConfig struct {
	Store    store.Store
	Interval time.Duration
	Logger   *slog.Logger
}

// NewJanitor creates a new session janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Janitor{
		store:    cfg.Store,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the cleanup loop. It runs until Stop() is called or the
// context is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("starting session janitor", "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	defer close(j.doneCh)

	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session janitor stopped due to context cancellation")
			return
		case <-j.stopCh:
			j.logger.Info("session janitor stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// Stop signals the janitor to stop and waits for it to finish.
func (j *Janitor) Stop() {
	close(j.stopCh)
	<-j.doneCh
}

// SweepNow triggers an immediate cleanup cycle (useful for testing).
func (j *Janitor) SweepNow(ctx context.Context) {
	j.sweep(ctx)
}

func (j *Janitor) sweep(ctx context.Context) {
	deleted, err := j.store.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		j.logger.Error("failed to delete expired sessions", "error", err)
		return
	}
	if deleted > 0 {
		j.logger.Info("deleted expired sessions", "count", deleted)
	}
}
