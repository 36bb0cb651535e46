package web

import (
	"context"
	"time"

	"floatchat/web/services"

	"go.uber.org/zap"
)

// TurnPruner deletes archived conversation turns.
type TurnPruner interface {
	DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService removes expired artifacts and archived turns.
type CleanupService struct {
	artifacts *services.ArtifactService
	turns     TurnPruner
	logger    *zap.Logger
}

// NewCleanupService creates a new cleanup service instance. turns may be nil.
func NewCleanupService(artifacts *services.ArtifactService, turns TurnPruner, logger *zap.Logger) *CleanupService {
	return &CleanupService{
		artifacts: artifacts,
		turns:     turns,
		logger:    logger,
	}
}

// Cleanup deletes everything older than maxAge and reports how much went.
func (cs *CleanupService) Cleanup(ctx context.Context, maxAge time.Duration) (artifacts int, turns int64) {
	cutoff := time.Now().Add(-maxAge)

	cs.logger.Debug("Starting cleanup",
		zap.Time("cutoff_time", cutoff),
		zap.Duration("max_age", maxAge))

	if cs.artifacts != nil {
		n, err := cs.artifacts.RemoveOlderThan(cutoff)
		if err != nil {
			cs.logger.Warn("Artifact cleanup failed", zap.Error(err))
		}
		artifacts = n
	}

	if cs.turns != nil {
		n, err := cs.turns.DeleteTurnsBefore(ctx, cutoff)
		if err != nil {
			cs.logger.Warn("Turn archive cleanup failed", zap.Error(err))
		}
		turns = n
	}

	if artifacts > 0 || turns > 0 {
		cs.logger.Info("Cleanup completed",
			zap.Int("artifacts_removed", artifacts),
			zap.Int64("turns_removed", turns))
	}
	return artifacts, turns
}

// Start runs Cleanup every interval until ctx is cancelled.
func (cs *CleanupService) Start(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cs.logger.Info("Cleanup scheduler started",
		zap.Duration("interval", interval),
		zap.Duration("max_age", maxAge))

	for {
		select {
		case <-ctx.Done():
			cs.logger.Info("Cleanup scheduler stopped")
			return
		case <-ticker.C:
			cs.Cleanup(ctx, maxAge)
		}
	}
}
