package worker

// sync_scheduler.go
// Background goroutine that runs a full catalog sync on a fixed interval.
// Manual triggers go through the same SyncService, so a tick that lands while
// a manual run is in flight is a no-op.

import (
	"context"
	"time"

	"catalogsync/internal/dto"

	"github.com/rs/zerolog/log"
)

// Syncer is the part of service.SyncService the scheduler needs.
type Syncer interface {
	SyncAll(ctx context.Context) (*dto.SyncResult, error)
}

// SchedulerConfig holds all dependencies for the scheduler goroutine.
type SchedulerConfig struct {
	Syncer   Syncer
	Interval time.Duration
	// RunOnStart triggers one sync right away instead of waiting a full
	// interval.
	RunOnStart bool
}

// StartSyncScheduler launches the ticker goroutine. The returned channel is
// closed once the goroutine has exited after ctx is cancelled. A zero or
// negative interval disables scheduling and returns a closed channel.
func StartSyncScheduler(ctx context.Context, cfg SchedulerConfig) <-chan struct{} {
	done := make(chan struct{})
	if cfg.Interval <= 0 || cfg.Syncer == nil {
		log.Info().Msg("sync_scheduler: disabled")
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("sync_scheduler: started")
		if cfg.RunOnStart {
			runScheduled(ctx, cfg.Syncer)
		}

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sync_scheduler: shutting down")
				return
			case <-ticker.C:
				runScheduled(ctx, cfg.Syncer)
			}
		}
	}()
	return done
}

func runScheduled(ctx context.Context, s Syncer) {
	res, err := s.SyncAll(ctx)
	if err != nil {
		// SyncAll already logged the failure with its counters
		return
	}
	if res != nil && !res.Started {
		log.Debug().Msg("sync_scheduler: previous run still in flight, tick skipped")
	}
}
