package domain

import (
	"context"
	"time"
)

// LedgerStore is the sole owner of point balances and their transaction logs.
// Add and Deduct are each a single atomic check-then-write, serialized per
// user; no caller may observe a stale balance between the check and the write.
type LedgerStore interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	Add(ctx context.Context, userID string, amount int, description string) (*PointTransaction, error)
	Deduct(ctx context.Context, userID string, amount int, description string) (*PointTransaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]PointTransaction, error)
}

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id string) (*Subscription, error)
	// ActiveByUser returns the user's active subscription or ErrNotFound.
	ActiveByUser(ctx context.Context, userID string) (*Subscription, error)
	UpdateStatus(ctx context.Context, id string, status SubscriptionStatus) error
	// ListLapsed returns non-expired subscriptions whose expiration date is at
	// or before now, oldest first.
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]Subscription, error)
	// Renew advances the expiration date of an active subscription.
	Renew(ctx context.Context, id string, expiration time.Time) error
}

// JobRepository persists batch jobs and their units.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus) error
	UpdateUnit(ctx context.Context, jobID string, position int, status UnitStatus, failureCode, errMsg string) error
}
