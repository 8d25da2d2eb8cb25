package core

// scheduler.go keeps the pending-review gauge honest. Queue operations move
// the gauge as items are added and decided, but items queued by another
// process (a second replica, or athletectl against the same database) are
// only seen by re-counting. The refresher recounts on a ticker until its
// context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRefreshInterval is used when RefreshConfig.Interval is zero.
const DefaultRefreshInterval = time.Minute

// RefreshConfig holds configuration for the pending gauge refresher.
type RefreshConfig struct {
	Interval time.Duration // How often to recount (default: 1m)
}

// StartPendingRefresher recounts pending review items immediately, then every
// Interval. It returns when ctx is cancelled.
func (s *Service) StartPendingRefresher(ctx context.Context, cfg RefreshConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefreshInterval
	}
	slog.Info("pending review refresher started", "interval", cfg.Interval)

	s.refreshPending(ctx)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pending review refresher stopped")
			return
		case <-ticker.C:
			s.refreshPending(ctx)
		}
	}
}

// refreshPending performs one recount. Failures are logged, not fatal.
func (s *Service) refreshPending(ctx context.Context) {
	start := time.Now()
	n, err := s.PendingCount(ctx)
	if err != nil {
		slog.Error("count pending reviews failed", "error", err)
		return
	}
	s.metrics.SetReviewPending(n)
	slog.Debug("pending reviews counted",
		"pending", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// PendingCount returns the number of pending review items across all
// organizations.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	items, err := s.queue.PendingItems(ctx, "")
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
