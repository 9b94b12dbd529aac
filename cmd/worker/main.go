package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/batch"
	"server/internal/domain"
	"server/internal/entitlement"
	"server/internal/infra"
	"server/internal/providers/synthetic"
	"server/internal/sqlinline"
	"server/internal/subscription"
)

const jobPollInterval = 2 * time.Second

var errNoJobAvailable = errors.New("no job available")

type jobWorker struct {
	ctx         context.Context
	runner      *infra.SQLRunner
	jobs        domain.JobRepository
	coordinator *batch.Coordinator
	manager     *subscription.Manager
	sweepEvery  time.Duration
	logger      infra.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	ledger := repo.NewLedgerRepository(pool, runner, cfg.LedgerRetryMax)
	subs := repo.NewSubscriptionRepository(pool)
	jobs := repo.NewJobRepository(pool)

	guard := entitlement.NewGuard(ledger, logger)
	coordinator := batch.NewCoordinator(guard, jobs, synthetic.NewRunner(logger, 0), logger, batch.Options{
		Concurrency: cfg.WorkerConcurrency,
		UnitTimeout: cfg.UnitTimeout,
		StopOnQuota: true,
	})

	worker := &jobWorker{
		ctx:         ctx,
		runner:      runner,
		jobs:        jobs,
		coordinator: coordinator,
		manager:     subscription.NewManager(subs, ledger, logger, cfg.AutoRenew),
		sweepEvery:  cfg.RenewalSweepEvery,
		logger:      logger,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run claims queued batch jobs until the context ends, sweeping lapsed
// subscriptions on a side ticker.
func (w *jobWorker) Run() error {
	w.logger.Info().Msg("worker: started")

	sweep := time.NewTicker(w.sweepEvery)
	defer sweep.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case <-sweep.C:
			if err := w.manager.RenewalTick(w.ctx, time.Now()); err != nil {
				w.logger.Error().Err(err).Msg("worker: renewal sweep failed")
			}
			w.logQueueDepth()
			continue
		default:
		}

		jobID, err := w.claimJob()
		if err != nil {
			if !errors.Is(err, errNoJobAvailable) {
				w.logger.Error().Err(err).Msg("worker: failed to claim job")
			}
			select {
			case <-w.ctx.Done():
				return w.ctx.Err()
			case <-time.After(jobPollInterval):
			}
			continue
		}

		w.handleJob(jobID)
	}
}

// logQueueDepth surfaces the backlog so operators can spot a stuck queue
// from the logs alone.
func (w *jobWorker) logQueueDepth() {
	row := w.runner.QueryRow(w.ctx, sqlinline.QCountQueuedJobs)
	var queued int
	if err := row.Scan(&queued); err != nil {
		w.logger.Error().Err(err).Msg("worker: queue depth query failed")
		return
	}
	w.logger.Info().Int("queued_jobs", queued).Msg("worker: queue depth")
}

func (w *jobWorker) claimJob() (string, error) {
	row := w.runner.QueryRow(w.ctx, sqlinline.QWorkerClaimJob)
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return "", errNoJobAvailable
		}
		return "", err
	}
	return id, nil
}

func (w *jobWorker) handleJob(jobID string) {
	w.logger.Info().Str("job_id", jobID).Msg("worker: picked job")
	job, err := w.jobs.GetByID(w.ctx, jobID)
	if err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: load job failed")
		return
	}
	if err := w.coordinator.Process(w.ctx, job); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: job processing failed")
	}
}
