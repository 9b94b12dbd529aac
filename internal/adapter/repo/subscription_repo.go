package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// SubscriptionRepositoryPG implements domain.SubscriptionRepository backed by PostgreSQL.
type SubscriptionRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepositoryPG.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepositoryPG {
	return &SubscriptionRepositoryPG{pool: pool}
}

const subscriptionColumns = `id, user_id, plan_name, billing_period, points_per_month, price, start_date, expiration_date, status`

// Create inserts a new subscription row. The partial unique index on
// (user_id) where status = 'active' backs the one-active-per-user invariant.
func (r *SubscriptionRepositoryPG) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
INSERT INTO subscriptions (id, user_id, plan_name, billing_period, points_per_month, price, start_date, expiration_date, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.PlanName,
		sub.BillingPeriod,
		sub.PointsPerMonth,
		sub.Price,
		sub.StartDate,
		sub.ExpirationDate,
		sub.Status,
	)
	return err
}

// GetByID fetches a subscription by its identifier.
func (r *SubscriptionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	return scanSubscription(row)
}

// ActiveByUser fetches the user's active subscription, or ErrNotFound.
func (r *SubscriptionRepositoryPG) ActiveByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 AND status = 'active'`, userID)
	return scanSubscription(row)
}

// UpdateStatus moves a subscription to a new lifecycle state.
func (r *SubscriptionRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.SubscriptionStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListLapsed returns non-expired subscriptions whose expiration date has
// passed, oldest first, for the renewal sweep.
func (r *SubscriptionRepositoryPG) ListLapsed(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions
WHERE expiration_date <= $1
  AND status IN ('active', 'cancelled')
ORDER BY expiration_date
LIMIT $2;
`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Renew advances the expiration date of an active subscription.
func (r *SubscriptionRepositoryPG) Renew(ctx context.Context, id string, expiration time.Time) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE subscriptions
SET expiration_date = $2, updated_at = NOW()
WHERE id = $1 AND status = 'active';
`, id, expiration)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanName, &s.BillingPeriod, &s.PointsPerMonth, &s.Price, &s.StartDate, &s.ExpirationDate, &s.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

var _ domain.SubscriptionRepository = (*SubscriptionRepositoryPG)(nil)
