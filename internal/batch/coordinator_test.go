package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/entitlement"
	"server/internal/infra"
)

func newTestCoordinator(t *testing.T, runner UnitRunner, opts Options) (*Coordinator, *repo.MemoryLedger, *repo.MemoryJobs) {
	t.Helper()
	ledger := repo.NewMemoryLedger()
	jobs := repo.NewMemoryJobs()
	guard := entitlement.NewGuard(ledger, infra.NewLogger("test"))
	return NewCoordinator(guard, jobs, runner, infra.NewLogger("test"), opts), ledger, jobs
}

func countDeducts(t *testing.T, ledger *repo.MemoryLedger, userID string) int {
	t.Helper()
	txs, err := ledger.ListTransactions(context.Background(), userID, domain.TransactionPageLimit)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	deducts := 0
	for _, tx := range txs {
		if tx.Type == domain.TransactionDeduct {
			deducts++
		}
	}
	return deducts
}

func TestSubmitAllUnitsSucceed(t *testing.T) {
	ctx := context.Background()
	runner := UnitRunnerFunc(func(ctx context.Context, job *domain.Job, unit *domain.Unit) error {
		return nil
	})
	coord, ledger, _ := newTestCoordinator(t, runner, Options{Concurrency: 1, StopOnQuota: true})

	if _, err := ledger.Add(ctx, "u1", 10, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	job, err := coord.Submit(ctx, "u1", domain.JobKindSubtitle, []string{"en", "id", "ja"}, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != domain.JobStatusSucceeded {
		t.Fatalf("expected succeeded, got %q", job.Status)
	}
	for _, unit := range job.Units {
		if unit.Status != domain.UnitSuccess {
			t.Fatalf("unit %d not success: %q", unit.Position, unit.Status)
		}
	}
	if job.ChargedPoints() != 3 {
		t.Fatalf("expected 3 charged points, got %d", job.ChargedPoints())
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 7 {
		t.Fatalf("expected balance 7, got %d", balance)
	}
}

func TestSubmitChargesOnlyCompletedUnits(t *testing.T) {
	ctx := context.Background()
	// Third unit hits the provider's rate limit; the rest would succeed.
	runner := UnitRunnerFunc(func(ctx context.Context, job *domain.Job, unit *domain.Unit) error {
		if unit.Position == 2 {
			return domain.ErrProviderRateLimited
		}
		return nil
	})
	coord, ledger, _ := newTestCoordinator(t, runner, Options{Concurrency: 1, StopOnQuota: true})

	if _, err := ledger.Add(ctx, "u1", 3, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	job, err := coord.Submit(ctx, "u1", domain.JobKindImageGenerate, []string{"a", "b", "c", "d", "e"}, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got := countDeducts(t, ledger, "u1"); got != 2 {
		t.Fatalf("expected exactly 2 deducts, got %d", got)
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 1 {
		t.Fatalf("expected balance 1, got %d", balance)
	}

	if job.Units[0].Status != domain.UnitSuccess || job.Units[1].Status != domain.UnitSuccess {
		t.Fatalf("completed units not marked success: %+v", job.Units[:2])
	}
	if job.Units[2].Status != domain.UnitFailed {
		t.Fatalf("rate limited unit not failed: %q", job.Units[2].Status)
	}
	if job.Units[2].FailureCode != string(domain.OutcomeRateLimited) {
		t.Fatalf("rate limited unit code = %q", job.Units[2].FailureCode)
	}
	for _, unit := range job.Units[3:] {
		if unit.Status != domain.UnitPending {
			t.Fatalf("unattempted unit %d should stay pending, got %q", unit.Position, unit.Status)
		}
	}
	// One success is enough for the job itself.
	if job.Status != domain.JobStatusSucceeded {
		t.Fatalf("expected succeeded, got %q", job.Status)
	}
}

func TestSubmitStopsOnInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	runner := UnitRunnerFunc(func(ctx context.Context, job *domain.Job, unit *domain.Unit) error {
		return nil
	})
	coord, ledger, _ := newTestCoordinator(t, runner, Options{Concurrency: 1, StopOnQuota: true})

	if _, err := ledger.Add(ctx, "u1", 1, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	job, err := coord.Submit(ctx, "u1", domain.JobKindURLRewrite, []string{"u1", "u2", "u3"}, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got := countDeducts(t, ledger, "u1"); got != 1 {
		t.Fatalf("expected 1 deduct, got %d", got)
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}
	if job.Units[0].Status != domain.UnitSuccess {
		t.Fatalf("first unit should succeed, got %q", job.Units[0].Status)
	}
	if job.Units[1].Status != domain.UnitFailed {
		t.Fatalf("unfunded unit should fail, got %q", job.Units[1].Status)
	}
	if job.Units[1].FailureCode != domain.FailureInsufficientBalance {
		t.Fatalf("unfunded unit code = %q", job.Units[1].FailureCode)
	}
	if job.Units[2].Status != domain.UnitPending {
		t.Fatalf("unit after stop should stay pending, got %q", job.Units[2].Status)
	}
}

func TestSubmitAllUnitsFail(t *testing.T) {
	ctx := context.Background()
	runner := UnitRunnerFunc(func(ctx context.Context, job *domain.Job, unit *domain.Unit) error {
		return errors.New("upstream exploded")
	})
	coord, ledger, _ := newTestCoordinator(t, runner, Options{Concurrency: 2})

	if _, err := ledger.Add(ctx, "u1", 10, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	job, err := coord.Submit(ctx, "u1", domain.JobKindImageGenerate, []string{"a", "b"}, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %q", job.Status)
	}
	if got := countDeducts(t, ledger, "u1"); got != 0 {
		t.Fatalf("failed units must not be charged, got %d deducts", got)
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 10 {
		t.Fatalf("balance changed by failed job: %d", balance)
	}
}

func TestSubmitUnitTimeoutNotCharged(t *testing.T) {
	ctx := context.Background()
	runner := UnitRunnerFunc(func(ctx context.Context, job *domain.Job, unit *domain.Unit) error {
		<-ctx.Done()
		return ctx.Err()
	})
	coord, ledger, _ := newTestCoordinator(t, runner, Options{Concurrency: 1, UnitTimeout: 10 * time.Millisecond})

	if _, err := ledger.Add(ctx, "u1", 5, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	job, err := coord.Submit(ctx, "u1", domain.JobKindSpeech, []string{"hello"}, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %q", job.Status)
	}
	if job.Units[0].Status != domain.UnitFailed {
		t.Fatalf("timed out unit should fail, got %q", job.Units[0].Status)
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 5 {
		t.Fatalf("timed out unit was charged: balance %d", balance)
	}
}

func TestSubmitValidation(t *testing.T) {
	runner := UnitRunnerFunc(func(ctx context.Context, job *domain.Job, unit *domain.Unit) error { return nil })
	coord, _, _ := newTestCoordinator(t, runner, Options{})

	if _, err := coord.Submit(context.Background(), "u1", domain.JobKindImageGenerate, nil, 1); err == nil {
		t.Fatal("expected error for empty unit list")
	}
	_, err := coord.Submit(context.Background(), "u1", domain.JobKindImageGenerate, []string{"a"}, 0)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero cost, got %v", err)
	}
}

func TestEnqueueLeavesJobQueued(t *testing.T) {
	ctx := context.Background()
	runner := UnitRunnerFunc(func(ctx context.Context, job *domain.Job, unit *domain.Unit) error { return nil })
	coord, ledger, jobs := newTestCoordinator(t, runner, Options{Concurrency: 1})

	job, err := coord.Enqueue(ctx, "u1", domain.JobKindImageGenerate, []string{"a", "b"}, 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	stored, err := jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued, got %q", stored.Status)
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 0 {
		t.Fatalf("enqueue must not charge: balance %d", balance)
	}
}
