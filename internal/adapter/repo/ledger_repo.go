package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// LedgerRepositoryPG implements domain.LedgerStore backed by PostgreSQL.
// Each mutation is one transaction: a conditional balance update followed by
// the append-only transaction insert. The row lock taken by the update
// serializes concurrent mutations per user.
type LedgerRepositoryPG struct {
	pool       *pgxpool.Pool
	runner     *infra.SQLRunner
	maxRetries int
}

// NewLedgerRepository creates a ledger store backed by PostgreSQL.
func NewLedgerRepository(pool *pgxpool.Pool, runner *infra.SQLRunner, maxRetries int) *LedgerRepositoryPG {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &LedgerRepositoryPG{pool: pool, runner: runner, maxRetries: maxRetries}
}

// GetBalance returns the user's current balance. A user with no balance row
// yet simply has zero points; the row is created on first mutation.
func (r *LedgerRepositoryPG) GetBalance(ctx context.Context, userID string) (int, error) {
	row := r.runner.QueryRow(ctx, sqlinline.QSelectBalance, userID)
	var balance int
	if err := row.Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Add credits the user's balance and appends the matching transaction.
func (r *LedgerRepositoryPG) Add(ctx context.Context, userID string, amount int, description string) (*domain.PointTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	return r.mutate(ctx, userID, domain.TransactionAdd, amount, description)
}

// Deduct debits the user's balance or fails with ErrInsufficientBalance,
// leaving balance and log untouched.
func (r *LedgerRepositoryPG) Deduct(ctx context.Context, userID string, amount int, description string) (*domain.PointTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	return r.mutate(ctx, userID, domain.TransactionDeduct, amount, description)
}

// ListTransactions returns the user's transactions, newest first.
func (r *LedgerRepositoryPG) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.PointTransaction, error) {
	if limit <= 0 || limit > domain.TransactionPageLimit {
		limit = domain.TransactionPageLimit
	}
	rows, err := r.runner.Query(ctx, sqlinline.QListTransactions, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.PointTransaction
	for rows.Next() {
		var tx domain.PointTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.BalanceAfter, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *LedgerRepositoryPG) mutate(ctx context.Context, userID string, txType domain.TransactionType, amount int, description string) (*domain.PointTransaction, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		tx, err := r.attemptMutation(ctx, userID, txType, amount, description)
		if err == nil {
			return tx, nil
		}
		if !isRetryableConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	// The conflict itself is internal; callers see a generic failure.
	return nil, fmt.Errorf("%w: ledger write conflict: %v", domain.ErrProviderFailure, lastErr)
}

func (r *LedgerRepositoryPG) attemptMutation(ctx context.Context, userID string, txType domain.TransactionType, amount int, description string) (*domain.PointTransaction, error) {
	dbtx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer dbtx.Rollback(ctx)

	if _, err := dbtx.Exec(ctx, `
INSERT INTO point_balances (user_id, balance)
VALUES ($1, 0)
ON CONFLICT (user_id) DO NOTHING;
`, userID); err != nil {
		return nil, fmt.Errorf("ensure balance row: %w", err)
	}

	delta := amount
	if txType == domain.TransactionDeduct {
		delta = -amount
	}

	// Check-then-write in a single statement: the WHERE clause rejects
	// overdrafts and the row lock serializes concurrent writers per user.
	row := dbtx.QueryRow(ctx, `
UPDATE point_balances
SET balance = balance + $2,
    updated_at = NOW()
WHERE user_id = $1
  AND balance + $2 >= 0
RETURNING balance;
`, userID, delta)

	var balanceAfter int
	if err := row.Scan(&balanceAfter); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInsufficientBalance
		}
		return nil, fmt.Errorf("update balance: %w", err)
	}

	entry := &domain.PointTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  description,
	}

	row = dbtx.QueryRow(ctx, `
INSERT INTO point_transactions (id, user_id, type, amount, balance_after, description)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at;
`, entry.ID, entry.UserID, entry.Type, entry.Amount, entry.BalanceAfter, entry.Description)
	if err := row.Scan(&entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}
	return entry, nil
}

// isRetryableConflict matches serialization and deadlock SQLSTATEs.
func isRetryableConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

var _ domain.LedgerStore = (*LedgerRepositoryPG)(nil)
