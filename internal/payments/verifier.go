// Package payments is the verification boundary between the ledger and real
// money. Purchased point credits must pass Verify before Add is ever called;
// the ledger store itself never trusts a client-supplied amount.
package payments

import (
	"context"

	"server/internal/domain"
)

// Confirmation is a gateway-verified purchase: how much was paid and how
// many points that payment funds.
type Confirmation struct {
	Reference string
	Amount    int64
	Points    int
}

// Verifier checks a payment reference against the gateway of record.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*Confirmation, error)
}

// Unconfigured rejects every reference. It is the default wiring until a
// real gateway integration is attached, so no deployment can accidentally
// let clients credit their own balance.
type Unconfigured struct{}

func (Unconfigured) Verify(context.Context, string) (*Confirmation, error) {
	return nil, domain.ErrPaymentUnverified
}

var _ Verifier = Unconfigured{}
