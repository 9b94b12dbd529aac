// Package synthetic is the stand-in generation backend used when no real
// provider is configured. It produces deterministic successes so the
// metering path stays exercisable in development deployments.
package synthetic

import (
	"context"
	"time"

	"server/internal/batch"
	"server/internal/domain"
	"server/internal/infra"
)

// Runner simulates one provider call per unit.
type Runner struct {
	logger infra.Logger
	delay  time.Duration
}

// NewRunner creates a synthetic runner. delay approximates provider latency.
func NewRunner(logger infra.Logger, delay time.Duration) *Runner {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Runner{logger: logger, delay: delay}
}

// Run waits out the simulated latency, honoring the per-unit deadline.
func (r *Runner) Run(ctx context.Context, job *domain.Job, unit *domain.Unit) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.delay):
	}
	r.logger.Debug().Str("job_id", job.ID).Str("ref", unit.Ref).Msg("synthetic: unit generated")
	return nil
}

var _ batch.UnitRunner = (*Runner)(nil)
