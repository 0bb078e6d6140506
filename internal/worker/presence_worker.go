package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/config"
)

// PresenceSweeper is the part of the presence service the sweeper drives.
type PresenceSweeper interface {
	SweepOffline(ctx context.Context) (int, error)
	CleanupStale(ctx context.Context, days int) (int, error)
}

// PresenceWorker periodically flips idle users offline and, once a day, drops stale
// activity records.
type PresenceWorker struct {
	presence      PresenceSweeper
	interval      time.Duration
	cleanupEvery  time.Duration
	retentionDays int
	logger        *zap.Logger
}

// NewPresenceWorker builds a worker from the chat configuration.
func NewPresenceWorker(presence PresenceSweeper, cfg config.ChatConfig, logger *zap.Logger) *PresenceWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceWorker{
		presence:      presence,
		interval:      cfg.PresenceSweepInterval(),
		cleanupEvery:  24 * time.Hour,
		retentionDays: cfg.ActivityRetentionDays,
		logger:        logger,
	}
}

// Run blocks until ctx is cancelled.
func (w *PresenceWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var lastCleanup time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.sweep(ctx)
			if now.Sub(lastCleanup) >= w.cleanupEvery {
				w.cleanup(ctx)
				lastCleanup = now
			}
		}
	}
}

func (w *PresenceWorker) sweep(ctx context.Context) {
	n, err := w.presence.SweepOffline(ctx)
	if err != nil {
		w.logger.Warn("presence sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Debug("presence sweep", zap.Int("offline", n))
	}
}

func (w *PresenceWorker) cleanup(ctx context.Context) {
	n, err := w.presence.CleanupStale(ctx, w.retentionDays)
	if err != nil {
		w.logger.Warn("activity cleanup failed", zap.Error(err))
		return
	}
	w.logger.Info("activity cleanup", zap.Int("deleted", n))
}
