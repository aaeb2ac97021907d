package workers

import (
	"time"

	"github.com/rs/zerolog/log"
	"courier/internal/engine/webhooks"
	"courier/internal/platform/repositories"
)

const sweepBatchSize = 100

// Sweeper re-drives the durable queue when in-process timers are lost. It
// complements the scheduler: the scheduler handles the happy path, the
// sweeper handles restarts and crashed attempts.
type Sweeper struct {
	queue     *repositories.QueueRepository
	scheduler webhooks.Scheduler
}

func NewSweeper(queue *repositories.QueueRepository, scheduler webhooks.Scheduler) *Sweeper {
	return &Sweeper{queue: queue, scheduler: scheduler}
}

// SweepDueRetries submits pending entries whose retry time has passed.
// Safe to run alongside live timers: the worker's pending-only claim means
// only one of two duplicate submissions delivers.
func (s *Sweeper) SweepDueRetries() {
	entries, err := s.queue.ListDue(time.Now(), sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Retry sweep query failed")
		return
	}

	for _, entry := range entries {
		s.scheduler.Submit(entry.ID, 0)
	}
	if len(entries) > 0 {
		log.Info().Int("count", len(entries)).Msg("Re-submitted due webhook deliveries")
	}
}

// ReapStaleProcessing returns entries stuck in processing to pending.
// maxAge should exceed the largest configurable delivery timeout so an
// in-flight attempt is never reaped.
func (s *Sweeper) ReapStaleProcessing(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	entries, err := s.queue.ListStaleProcessing(cutoff, sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Stale processing query failed")
		return
	}

	for _, entry := range entries {
		if err := s.queue.ReleaseProcessing(entry.ID); err != nil {
			log.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to release stale entry")
			continue
		}
		log.Warn().Str("entry_id", entry.ID).Msg("Released stale processing entry")
		s.scheduler.Submit(entry.ID, 0)
	}
}
