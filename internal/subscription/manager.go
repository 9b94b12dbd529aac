// Package subscription owns the plan catalog lifecycle: activation,
// cancellation, expiry tracking, and funding the ledger on subscribe.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
)

// CreditDescription is the ledger description used for subscribe credits.
const CreditDescription = "subscription credit"

// RenewalDescription is the ledger description used for renewal credits.
const RenewalDescription = "subscription renewal"

// Manager coordinates subscriptions and the ledger credits they fund.
type Manager struct {
	subs      domain.SubscriptionRepository
	ledger    domain.LedgerStore
	logger    infra.Logger
	autoRenew bool
	now       func() time.Time
}

// NewManager creates a subscription manager. When autoRenew is set, lapsed
// active subscriptions are re-credited and extended by RenewalTick instead
// of expiring.
func NewManager(subs domain.SubscriptionRepository, ledger domain.LedgerStore, logger infra.Logger, autoRenew bool) *Manager {
	return &Manager{
		subs:      subs,
		ledger:    ledger,
		logger:    logger,
		autoRenew: autoRenew,
		now:       time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Subscribe activates a plan for the user and immediately credits the plan's
// monthly points. Fails with ErrSubscriptionAlreadyActive when the user
// already holds an active subscription.
func (m *Manager) Subscribe(ctx context.Context, userID, planName string) (*domain.Subscription, error) {
	plan, err := domain.PlanByName(planName)
	if err != nil {
		return nil, err
	}

	if _, err := m.subs.ActiveByUser(ctx, userID); err == nil {
		return nil, domain.ErrSubscriptionAlreadyActive
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check active subscription: %w", err)
	}

	now := m.now()
	sub := &domain.Subscription{
		ID:             uuid.NewString(),
		UserID:         userID,
		PlanName:       plan.Name,
		BillingPeriod:  plan.BillingPeriod,
		PointsPerMonth: plan.PointsPerMonth,
		Price:          plan.Price,
		StartDate:      now,
		ExpirationDate: plan.BillingPeriod.Advance(now),
		Status:         domain.SubscriptionActive,
	}
	if !sub.ExpirationDate.After(sub.StartDate) {
		m.logger.Error().Str("plan", plan.Name).Time("start", sub.StartDate).Time("expiration", sub.ExpirationDate).Msg("subscription: invalid expiration state")
		return nil, domain.ErrInvalidExpirationState
	}

	if err := m.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	if _, err := m.ledger.Add(ctx, userID, plan.PointsPerMonth, CreditDescription); err != nil {
		// Unwind the never-funded row so a retry is not blocked by
		// ErrSubscriptionAlreadyActive.
		if rbErr := m.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionExpired); rbErr != nil {
			m.logger.Error().Err(rbErr).Str("subscription_id", sub.ID).Msg("subscription: rollback after failed credit failed")
		}
		return nil, fmt.Errorf("credit subscription points: %w", err)
	}

	m.logger.Info().Str("user_id", userID).Str("plan", plan.Name).Time("expires", sub.ExpirationDate).Msg("subscription: activated")
	return sub, nil
}

// Cancel moves the subscription to cancelled. Points are not clawed back and
// the expiration date is untouched: the paid period stays usable.
func (m *Manager) Cancel(ctx context.Context, subscriptionID string) error {
	sub, err := m.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status != domain.SubscriptionActive {
		return domain.ErrNotFound
	}
	if err := m.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionCancelled); err != nil {
		return err
	}
	m.logger.Info().Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Msg("subscription: cancelled")
	return nil
}

// Current returns the user's active subscription, or ErrNotFound.
func (m *Manager) Current(ctx context.Context, userID string) (*domain.Subscription, error) {
	return m.subs.ActiveByUser(ctx, userID)
}

// ExpiringSoon reports whether the subscription should trigger an expiry
// warning at now. Read-only.
func (m *Manager) ExpiringSoon(sub *domain.Subscription, now time.Time) bool {
	return sub.ExpiringSoon(now)
}

const lapsedBatchSize = 100

// RenewalTick sweeps subscriptions whose expiration date has passed. Active
// subscriptions are renewed (points re-credited, expiration advanced one
// billing period) when auto-renew is on; otherwise, and for cancelled
// subscriptions, the row moves to expired.
func (m *Manager) RenewalTick(ctx context.Context, now time.Time) error {
	lapsed, err := m.subs.ListLapsed(ctx, now, lapsedBatchSize)
	if err != nil {
		return fmt.Errorf("list lapsed subscriptions: %w", err)
	}

	for _, sub := range lapsed {
		if sub.Status == domain.SubscriptionActive && m.autoRenew {
			if err := m.renew(ctx, sub); err != nil {
				m.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("subscription: renewal failed")
			}
			continue
		}
		if err := m.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionExpired); err != nil {
			m.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("subscription: expire failed")
			continue
		}
		m.logger.Info().Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Msg("subscription: expired")
	}
	return nil
}

func (m *Manager) renew(ctx context.Context, sub domain.Subscription) error {
	next := sub.BillingPeriod.Advance(sub.ExpirationDate)
	if err := m.subs.Renew(ctx, sub.ID, next); err != nil {
		return err
	}
	if _, err := m.ledger.Add(ctx, sub.UserID, sub.PointsPerMonth, RenewalDescription); err != nil {
		// Restore the old expiration; the next sweep retries the renewal.
		if rbErr := m.subs.Renew(ctx, sub.ID, sub.ExpirationDate); rbErr != nil {
			m.logger.Error().Err(rbErr).Str("subscription_id", sub.ID).Msg("subscription: renewal rollback failed")
		}
		return err
	}
	m.logger.Info().Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Time("expires", next).Msg("subscription: renewed")
	return nil
}
