// Package entitlement wraps every paid operation: charge before calling the
// provider, refund only on a confirmed provider failure after the charge.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
)

// Hold is the accounting handle returned by Charge. It carries enough to
// issue exactly one matching refund if the downstream call fails.
type Hold struct {
	ID            string
	UserID        string
	Amount        int
	TransactionID string
	Description   string

	settled atomic.Bool
}

// Guard gates paid operations on the ledger store.
type Guard struct {
	ledger domain.LedgerStore
	logger infra.Logger
}

// NewGuard creates an entitlement guard over the given ledger store.
func NewGuard(ledger domain.LedgerStore, logger infra.Logger) *Guard {
	return &Guard{ledger: ledger, logger: logger}
}

// Charge debits cost points from the user before the provider is called.
// ErrInsufficientBalance passes through untouched; nothing was mutated.
func (g *Guard) Charge(ctx context.Context, userID string, cost int, description string) (*Hold, error) {
	if cost <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	tx, err := g.ledger.Deduct(ctx, userID, cost, description)
	if err != nil {
		return nil, err
	}
	hold := &Hold{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        cost,
		TransactionID: tx.ID,
		Description:   description,
	}
	g.logger.Debug().Str("user_id", userID).Int("cost", cost).Str("hold_id", hold.ID).Msg("entitlement: charged")
	return hold, nil
}

// Refund credits the held amount back after a confirmed provider failure.
// Each hold refunds at most once; user-input errors never reach here, so
// their charges stay consumed.
func (g *Guard) Refund(ctx context.Context, hold *Hold, description string) error {
	if hold == nil {
		return fmt.Errorf("refund: nil hold")
	}
	if !hold.settled.CompareAndSwap(false, true) {
		return domain.ErrHoldAlreadySettled
	}
	if _, err := g.ledger.Add(ctx, hold.UserID, hold.Amount, description); err != nil {
		// Give the caller one more shot at refunding.
		hold.settled.Store(false)
		return fmt.Errorf("refund hold %s: %w", hold.ID, err)
	}
	g.logger.Info().Str("user_id", hold.UserID).Int("amount", hold.Amount).Str("hold_id", hold.ID).Msg("entitlement: refunded")
	return nil
}

// Settle applies the charge policy to a normalized provider outcome: success
// consumes the hold, every failure flavour refunds it.
func (g *Guard) Settle(ctx context.Context, hold *Hold, outcome domain.Outcome) error {
	if outcome.Chargeable() {
		if !hold.settled.CompareAndSwap(false, true) {
			return domain.ErrHoldAlreadySettled
		}
		return nil
	}
	return g.Refund(ctx, hold, "refund: "+hold.Description)
}

// Normalize maps an arbitrary provider error into the fixed outcome taxonomy
// at the guard boundary, before any charge or refund decision is made.
func Normalize(err error) domain.Outcome {
	if err == nil {
		return domain.OutcomeSuccess
	}
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr.Outcome
	}
	switch {
	case errors.Is(err, domain.ErrProviderRateLimited):
		return domain.OutcomeRateLimited
	case errors.Is(err, domain.ErrProviderCreditsExhausted):
		return domain.OutcomeCreditsExhausted
	}
	// Duck-typed backends report quota conditions as bare strings.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return domain.OutcomeRateLimited
	case strings.Contains(msg, "credits exhausted"), strings.Contains(msg, "quota exceeded"):
		return domain.OutcomeCreditsExhausted
	}
	// Timeouts count as failed: no charge unless the provider affirmatively
	// reported completion.
	return domain.OutcomeGenericFailure
}
