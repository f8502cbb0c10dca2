package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Trigger enqueues a recompute task.
type Trigger interface {
	Trigger(ctx context.Context) (string, error)
}

// Scheduler enqueues a recompute on a fixed interval so cached statistics
// are refreshed even without new ingestion.
type Scheduler struct {
	trigger  Trigger
	interval time.Duration
	logger   zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(trigger Trigger, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		trigger:  trigger,
		interval: interval,
		logger:   logger,
	}
}

// Start runs until ctx is cancelled. The first trigger fires one interval
// after start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("recompute scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("recompute scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	taskID, err := s.trigger.Trigger(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to enqueue scheduled recompute")
		return
	}

	s.logger.Info().Str("task_id", taskID).Msg("scheduled recompute enqueued")
}
