package handlers

import (
	"context"
	"net/http"
	"testing"

	"server/internal/adapter/repo"
	"server/internal/batch"
	"server/internal/domain"
	"server/internal/entitlement"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/payments"
	"server/internal/subscription"
)

// fakeVerifier approves the references it was seeded with.
type fakeVerifier struct {
	confirmations map[string]payments.Confirmation
}

func (f *fakeVerifier) Verify(_ context.Context, reference string) (*payments.Confirmation, error) {
	c, ok := f.confirmations[reference]
	if !ok {
		return nil, domain.ErrPaymentUnverified
	}
	return &c, nil
}

type testEnv struct {
	app    *App
	ledger *repo.MemoryLedger
	jobs   *repo.MemoryJobs
}

func newTestEnv(t *testing.T, verifier payments.Verifier) *testEnv {
	t.Helper()
	return newTestEnvWithRunner(t, verifier, batch.UnitRunnerFunc(func(ctx context.Context, job *domain.Job, unit *domain.Unit) error {
		return nil
	}))
}

func newTestEnvWithRunner(t *testing.T, verifier payments.Verifier, runner batch.UnitRunner) *testEnv {
	t.Helper()
	logger := infra.NewLogger("test")
	ledger := repo.NewMemoryLedger()
	jobs := repo.NewMemoryJobs()
	subs := repo.NewMemorySubscriptions()

	manager := subscription.NewManager(subs, ledger, logger, true)
	guard := entitlement.NewGuard(ledger, logger)
	coordinator := batch.NewCoordinator(guard, jobs, runner, logger, batch.Options{
		Concurrency: 1,
		StopOnQuota: true,
	})

	return &testEnv{
		app:    NewApp(logger, ledger, manager, coordinator, domain.DefaultCostTable(), verifier),
		ledger: ledger,
		jobs:   jobs,
	}
}

// authed stamps the request context with a user id the way the auth
// middleware would.
func authed(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}
