package worker

import (
	"context"
	"time"

	"groundstation/internal/service"

	"go.uber.org/zap"
)

// NewSnapshotWarmer keeps the cached snapshot populated so dashboard polls
// rarely hit the database.
func NewSnapshotWarmer(telemetry service.TelemetryService, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return NewPeriodicWorker("snapshot_warmer", interval, telemetry.WarmSnapshot, logger)
}

// Sweeper drops idle state, e.g. per-client rate limiter buckets.
type Sweeper interface {
	Sweep() int
}

func NewSweepWorker(name string, sweeper Sweeper, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	l := logger.Named(name)
	return NewPeriodicWorker(name, interval, func(ctx context.Context) error {
		if n := sweeper.Sweep(); n > 0 {
			l.Debug("swept idle entries", zap.Int("removed", n))
		}
		return nil
	}, logger)
}
