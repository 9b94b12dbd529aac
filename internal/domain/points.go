package domain

import "time"

// TransactionType enumerates the two directions a balance can move.
type TransactionType string

const (
	TransactionAdd    TransactionType = "add"
	TransactionDeduct TransactionType = "deduct"
)

// PointBalance is the single durable balance row owned by the ledger store.
// It is created lazily on the first mutation for a user and never deleted.
type PointBalance struct {
	UserID    string
	Balance   int
	UpdatedAt time.Time
}

// PointTransaction is one append-only entry in a user's ledger. Rows are
// immutable once written; replaying them from zero reproduces the balance.
type PointTransaction struct {
	ID           string
	UserID       string
	Type         TransactionType
	Amount       int
	BalanceAfter int
	Description  string
	CreatedAt    time.Time
}

// TransactionPageLimit caps ListTransactions page sizes.
const TransactionPageLimit = 50
