package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/infra"
)

func newTestManager(t *testing.T, autoRenew bool) (*Manager, *repo.MemorySubscriptions, *repo.MemoryLedger) {
	t.Helper()
	subs := repo.NewMemorySubscriptions()
	ledger := repo.NewMemoryLedger()
	return NewManager(subs, ledger, infra.NewLogger("test"), autoRenew), subs, ledger
}

func TestSubscribeCreditsPoints(t *testing.T) {
	ctx := context.Background()
	manager, _, ledger := newTestManager(t, true)

	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.SetClock(func() time.Time { return start })

	sub, err := manager.Subscribe(ctx, "u1", "Pro-Monthly")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if sub.Status != domain.SubscriptionActive {
		t.Fatalf("unexpected status %q", sub.Status)
	}
	if !sub.ExpirationDate.Equal(start.AddDate(0, 1, 0)) {
		t.Fatalf("expiration mismatch: got %s", sub.ExpirationDate)
	}

	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 350 {
		t.Fatalf("expected 350 points credited, got %d", balance)
	}
	txs, _ := ledger.ListTransactions(ctx, "u1", 10)
	if len(txs) != 1 {
		t.Fatalf("expected one transaction, got %d", len(txs))
	}
	tx := txs[0]
	if tx.Type != domain.TransactionAdd || tx.Amount != 350 || tx.BalanceAfter != 350 {
		t.Fatalf("unexpected credit transaction: %+v", tx)
	}
	if tx.Description != CreditDescription {
		t.Fatalf("unexpected description %q", tx.Description)
	}
}

func TestSubscribeRejectsSecondActive(t *testing.T) {
	ctx := context.Background()
	manager, _, ledger := newTestManager(t, true)

	if _, err := manager.Subscribe(ctx, "u1", "Pro-Monthly"); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	_, err := manager.Subscribe(ctx, "u1", "Basic-Monthly")
	if !errors.Is(err, domain.ErrSubscriptionAlreadyActive) {
		t.Fatalf("expected ErrSubscriptionAlreadyActive, got %v", err)
	}

	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 350 {
		t.Fatalf("failed subscribe mutated balance: %d", balance)
	}
	txs, _ := ledger.ListTransactions(ctx, "u1", 10)
	if len(txs) != 1 {
		t.Fatalf("failed subscribe wrote transactions: %d", len(txs))
	}
}

func TestSubscribeUnknownPlan(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newTestManager(t, true)

	_, err := manager.Subscribe(ctx, "u1", "Mega-Weekly")
	if !errors.Is(err, domain.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestCancelKeepsEntitlement(t *testing.T) {
	ctx := context.Background()
	manager, subs, ledger := newTestManager(t, true)

	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.SetClock(func() time.Time { return start })

	sub, err := manager.Subscribe(ctx, "u1", "Pro-Monthly")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := manager.Cancel(ctx, sub.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	cancelled, err := subs.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if cancelled.Status != domain.SubscriptionCancelled {
		t.Fatalf("status not cancelled: %q", cancelled.Status)
	}
	if !cancelled.ExpirationDate.Equal(sub.ExpirationDate) {
		t.Fatal("cancel must not shorten the paid period")
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 350 {
		t.Fatalf("cancel clawed back points: %d", balance)
	}
	if !cancelled.Entitled(start.AddDate(0, 0, 20)) {
		t.Fatal("cancelled subscription must entitle through the paid period")
	}
	if cancelled.Entitled(start.AddDate(0, 2, 0)) {
		t.Fatal("entitlement must end at expiration")
	}
}

func TestCancelTwiceFails(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newTestManager(t, true)

	sub, err := manager.Subscribe(ctx, "u1", "Basic-Monthly")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := manager.Cancel(ctx, sub.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := manager.Cancel(ctx, sub.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second cancel, got %v", err)
	}
}

func TestExpiringSoon(t *testing.T) {
	expiration := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	sub := &domain.Subscription{ExpirationDate: expiration}
	manager, _, _ := newTestManager(t, true)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "well before window", now: expiration.AddDate(0, 0, -20), want: false},
		{name: "window boundary", now: expiration.AddDate(0, 0, -7), want: true},
		{name: "inside window", now: expiration.AddDate(0, 0, -1), want: true},
		{name: "at expiration", now: expiration, want: true},
		{name: "after expiration", now: expiration.Add(time.Hour), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := manager.ExpiringSoon(sub, tc.now); got != tc.want {
				t.Fatalf("ExpiringSoon(%s) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestRenewalTickRenewsActive(t *testing.T) {
	ctx := context.Background()
	manager, subs, ledger := newTestManager(t, true)

	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.SetClock(func() time.Time { return start })

	sub, err := manager.Subscribe(ctx, "u1", "Pro-Monthly")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	now := sub.ExpirationDate.Add(time.Hour)
	if err := manager.RenewalTick(ctx, now); err != nil {
		t.Fatalf("RenewalTick: %v", err)
	}

	renewed, _ := subs.GetByID(ctx, sub.ID)
	if renewed.Status != domain.SubscriptionActive {
		t.Fatalf("renewed subscription not active: %q", renewed.Status)
	}
	if !renewed.ExpirationDate.Equal(sub.ExpirationDate.AddDate(0, 1, 0)) {
		t.Fatalf("expiration not advanced one period: %s", renewed.ExpirationDate)
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 700 {
		t.Fatalf("renewal credit missing: balance %d", balance)
	}
}

func TestRenewalTickExpiresWithoutAutoRenew(t *testing.T) {
	ctx := context.Background()
	manager, subs, ledger := newTestManager(t, false)

	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.SetClock(func() time.Time { return start })

	sub, err := manager.Subscribe(ctx, "u1", "Pro-Monthly")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := manager.RenewalTick(ctx, sub.ExpirationDate.Add(time.Hour)); err != nil {
		t.Fatalf("RenewalTick: %v", err)
	}

	expired, _ := subs.GetByID(ctx, sub.ID)
	if expired.Status != domain.SubscriptionExpired {
		t.Fatalf("expected expired, got %q", expired.Status)
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 350 {
		t.Fatalf("expiry must not touch the balance: %d", balance)
	}
}

func TestRenewalTickExpiresCancelled(t *testing.T) {
	ctx := context.Background()
	manager, subs, _ := newTestManager(t, true)

	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.SetClock(func() time.Time { return start })

	sub, err := manager.Subscribe(ctx, "u1", "Pro-Monthly")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := manager.Cancel(ctx, sub.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if err := manager.RenewalTick(ctx, sub.ExpirationDate.Add(time.Hour)); err != nil {
		t.Fatalf("RenewalTick: %v", err)
	}
	expired, _ := subs.GetByID(ctx, sub.ID)
	if expired.Status != domain.SubscriptionExpired {
		t.Fatalf("cancelled subscription should expire after its period, got %q", expired.Status)
	}
}

// flakyLedger fails the next failAdds credits, then behaves normally.
type flakyLedger struct {
	*repo.MemoryLedger
	failAdds int
}

var errLedgerDown = errors.New("ledger unavailable")

func (f *flakyLedger) Add(ctx context.Context, userID string, amount int, description string) (*domain.PointTransaction, error) {
	if f.failAdds > 0 {
		f.failAdds--
		return nil, errLedgerDown
	}
	return f.MemoryLedger.Add(ctx, userID, amount, description)
}

func TestSubscribeRollsBackWhenCreditFails(t *testing.T) {
	ctx := context.Background()
	subs := repo.NewMemorySubscriptions()
	ledger := &flakyLedger{MemoryLedger: repo.NewMemoryLedger(), failAdds: 1}
	manager := NewManager(subs, ledger, infra.NewLogger("test"), true)

	_, err := manager.Subscribe(ctx, "u1", "Pro-Monthly")
	if !errors.Is(err, errLedgerDown) {
		t.Fatalf("expected credit failure to surface, got %v", err)
	}

	// No active subscription may survive an unfunded subscribe.
	if _, err := subs.ActiveByUser(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unfunded subscription left active: %v", err)
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 0 {
		t.Fatalf("balance mutated on failed subscribe: %d", balance)
	}

	// A retry must not hit ErrSubscriptionAlreadyActive.
	sub, err := manager.Subscribe(ctx, "u1", "Pro-Monthly")
	if err != nil {
		t.Fatalf("retry after failed credit: %v", err)
	}
	if sub.Status != domain.SubscriptionActive {
		t.Fatalf("retry did not activate: %q", sub.Status)
	}
	balance, _ = ledger.GetBalance(ctx, "u1")
	if balance != 350 {
		t.Fatalf("retry did not credit points: %d", balance)
	}
}

func TestRenewalTickRollsBackWhenCreditFails(t *testing.T) {
	ctx := context.Background()
	subs := repo.NewMemorySubscriptions()
	ledger := &flakyLedger{MemoryLedger: repo.NewMemoryLedger()}
	manager := NewManager(subs, ledger, infra.NewLogger("test"), true)

	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.SetClock(func() time.Time { return start })

	sub, err := manager.Subscribe(ctx, "u1", "Pro-Monthly")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ledger.failAdds = 1
	now := sub.ExpirationDate.Add(time.Hour)
	if err := manager.RenewalTick(ctx, now); err != nil {
		t.Fatalf("RenewalTick: %v", err)
	}

	// A failed credit must not consume the billing period.
	after, _ := subs.GetByID(ctx, sub.ID)
	if !after.ExpirationDate.Equal(sub.ExpirationDate) {
		t.Fatalf("expiration advanced without credit: %s", after.ExpirationDate)
	}
	if after.Status != domain.SubscriptionActive {
		t.Fatalf("renewal failure changed status: %q", after.Status)
	}
	balance, _ := ledger.GetBalance(ctx, "u1")
	if balance != 350 {
		t.Fatalf("balance mutated on failed renewal: %d", balance)
	}

	// The next sweep completes the renewal.
	if err := manager.RenewalTick(ctx, now); err != nil {
		t.Fatalf("second RenewalTick: %v", err)
	}
	renewed, _ := subs.GetByID(ctx, sub.ID)
	if !renewed.ExpirationDate.Equal(sub.ExpirationDate.AddDate(0, 1, 0)) {
		t.Fatalf("retry did not advance expiration: %s", renewed.ExpirationDate)
	}
	balance, _ = ledger.GetBalance(ctx, "u1")
	if balance != 700 {
		t.Fatalf("retry did not credit points: %d", balance)
	}
}

func TestRenewalTickLeavesCurrentAlone(t *testing.T) {
	ctx := context.Background()
	manager, subs, _ := newTestManager(t, true)

	sub, err := manager.Subscribe(ctx, "u1", "Pro-Yearly")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := manager.RenewalTick(ctx, time.Now()); err != nil {
		t.Fatalf("RenewalTick: %v", err)
	}
	unchanged, _ := subs.GetByID(ctx, sub.ID)
	if !unchanged.ExpirationDate.Equal(sub.ExpirationDate) || unchanged.Status != domain.SubscriptionActive {
		t.Fatalf("current subscription touched by sweep: %+v", unchanged)
	}
}
