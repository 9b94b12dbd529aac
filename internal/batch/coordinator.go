// Package batch splits multi-unit jobs into chargeable units and meters them
// pay-per-completed-unit: a unit is charged only after it succeeds, and
// failed or unattempted units never touch the ledger.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"server/internal/domain"
	"server/internal/entitlement"
	"server/internal/infra"
)

// UnitRunner executes one unit against the external provider. The context
// carries the per-unit timeout; a nil return means the unit succeeded.
type UnitRunner interface {
	Run(ctx context.Context, job *domain.Job, unit *domain.Unit) error
}

// UnitRunnerFunc adapts a function to the UnitRunner interface.
type UnitRunnerFunc func(ctx context.Context, job *domain.Job, unit *domain.Unit) error

func (f UnitRunnerFunc) Run(ctx context.Context, job *domain.Job, unit *domain.Unit) error {
	return f(ctx, job, unit)
}

// Coordinator orchestrates unit processing and per-unit charging.
type Coordinator struct {
	guard       *entitlement.Guard
	jobs        domain.JobRepository
	runner      UnitRunner
	logger      infra.Logger
	concurrency int
	unitTimeout time.Duration
	stopOnQuota bool
}

// Options tune coordinator behavior.
type Options struct {
	// Concurrency bounds the unit worker pool. Minimum 1.
	Concurrency int
	// UnitTimeout bounds each provider call; an expired deadline marks the
	// unit failed without charging.
	UnitTimeout time.Duration
	// StopOnQuota stops dispatching further units after a rate_limited or
	// credits_exhausted signal instead of continuing.
	StopOnQuota bool
}

// NewCoordinator creates a batch metering coordinator.
func NewCoordinator(guard *entitlement.Guard, jobs domain.JobRepository, runner UnitRunner, logger infra.Logger, opts Options) *Coordinator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = 60 * time.Second
	}
	return &Coordinator{
		guard:       guard,
		jobs:        jobs,
		runner:      runner,
		logger:      logger,
		concurrency: opts.Concurrency,
		unitTimeout: opts.UnitTimeout,
		stopOnQuota: opts.StopOnQuota,
	}
}

// NewJob assembles a job with one pending unit per ref.
func NewJob(userID string, kind domain.JobKind, refs []string, costPerUnit int) *domain.Job {
	job := &domain.Job{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		CostPerUnit: costPerUnit,
		Status:      domain.JobStatusQueued,
	}
	for i, ref := range refs {
		job.Units = append(job.Units, domain.Unit{
			Position: i,
			Ref:      ref,
			Cost:     costPerUnit,
			Status:   domain.UnitPending,
		})
	}
	return job
}

// Submit persists a job and processes it in the calling goroutine, returning
// the job with terminal per-unit statuses.
func (c *Coordinator) Submit(ctx context.Context, userID string, kind domain.JobKind, refs []string, costPerUnit int) (*domain.Job, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("submit: no units")
	}
	if costPerUnit <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	job := NewJob(userID, kind, refs, costPerUnit)
	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}
	if err := c.Process(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Enqueue persists a job in queued state for a worker to claim later.
func (c *Coordinator) Enqueue(ctx context.Context, userID string, kind domain.JobKind, refs []string, costPerUnit int) (*domain.Job, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("enqueue: no units")
	}
	if costPerUnit <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	job := NewJob(userID, kind, refs, costPerUnit)
	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}
	return job, nil
}

// Get fetches a job and its units.
func (c *Coordinator) Get(ctx context.Context, id string) (*domain.Job, error) {
	return c.jobs.GetByID(ctx, id)
}

// Process runs every unit through the bounded pool and derives the job
// status from unit outcomes. It mutates job in place.
func (c *Coordinator) Process(ctx context.Context, job *domain.Job) error {
	if err := c.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusRunning); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	var stopped atomic.Bool
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for i := range job.Units {
		unit := &job.Units[i]
		if stopped.Load() {
			// Left pending: unattempted units are never charged.
			break
		}
		g.Go(func() error {
			c.processUnit(ctx, job, unit, &stopped)
			return nil
		})
	}
	_ = g.Wait()

	job.Status = job.DeriveStatus()
	if err := c.jobs.UpdateStatus(ctx, job.ID, job.Status); err != nil {
		return fmt.Errorf("store job status: %w", err)
	}
	c.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("charged_points", job.ChargedPoints()).
		Msg("batch: job finished")
	return nil
}

func (c *Coordinator) processUnit(ctx context.Context, job *domain.Job, unit *domain.Unit, stopped *atomic.Bool) {
	if stopped.Load() {
		return
	}
	c.setUnit(ctx, job, unit, domain.UnitProcessing, "", "")

	uctx, cancel := context.WithTimeout(ctx, c.unitTimeout)
	err := c.runner.Run(uctx, job, unit)
	cancel()

	outcome := entitlement.Normalize(err)
	if !outcome.Chargeable() {
		msg := string(outcome)
		if err != nil {
			msg = err.Error()
		}
		c.setUnit(ctx, job, unit, domain.UnitFailed, string(outcome), msg)
		if c.stopOnQuota && (outcome == domain.OutcomeRateLimited || outcome == domain.OutcomeCreditsExhausted) {
			stopped.Store(true)
		}
		return
	}

	// Charge only now that this unit has completed.
	hold, err := c.guard.Charge(ctx, job.UserID, unit.Cost, chargeDescription(job, unit))
	if err != nil {
		code := string(domain.OutcomeGenericFailure)
		if errors.Is(err, domain.ErrInsufficientBalance) {
			code = domain.FailureInsufficientBalance
			stopped.Store(true)
		}
		c.setUnit(ctx, job, unit, domain.UnitFailed, code, err.Error())
		return
	}
	_ = c.guard.Settle(ctx, hold, domain.OutcomeSuccess)
	c.setUnit(ctx, job, unit, domain.UnitSuccess, "", "")
}

func (c *Coordinator) setUnit(ctx context.Context, job *domain.Job, unit *domain.Unit, status domain.UnitStatus, failureCode, errMsg string) {
	unit.Status = status
	unit.FailureCode = failureCode
	unit.ErrorMessage = errMsg
	if err := c.jobs.UpdateUnit(ctx, job.ID, unit.Position, status, failureCode, errMsg); err != nil {
		c.logger.Error().Err(err).Str("job_id", job.ID).Int("position", unit.Position).Msg("batch: unit update failed")
	}
}

func chargeDescription(job *domain.Job, unit *domain.Unit) string {
	return fmt.Sprintf("%s: %s", job.Kind, unit.Ref)
}
