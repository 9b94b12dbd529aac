package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
)

// MemoryLedger implements domain.LedgerStore with mutex-guarded maps. It
// honors the same atomic check-then-write contract as the PostgreSQL store
// and backs unit tests and local development.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
	logs     map[string][]domain.PointTransaction
	now      func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger store.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int),
		logs:     make(map[string][]domain.PointTransaction),
		now:      time.Now,
	}
}

// SetClock overrides the timestamp source, for tests.
func (m *MemoryLedger) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryLedger) GetBalance(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *MemoryLedger) Add(_ context.Context, userID string, amount int, description string) (*domain.PointTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.append(userID, domain.TransactionAdd, amount, description), nil
}

func (m *MemoryLedger) Deduct(_ context.Context, userID string, amount int, description string) (*domain.PointTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount > m.balances[userID] {
		return nil, domain.ErrInsufficientBalance
	}
	return m.append(userID, domain.TransactionDeduct, amount, description), nil
}

func (m *MemoryLedger) ListTransactions(_ context.Context, userID string, limit int) ([]domain.PointTransaction, error) {
	if limit <= 0 || limit > domain.TransactionPageLimit {
		limit = domain.TransactionPageLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logs[userID]
	if len(log) < limit {
		limit = len(log)
	}
	// Stored oldest first; returned newest first.
	out := make([]domain.PointTransaction, 0, limit)
	for i := len(log) - 1; i >= len(log)-limit; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

// append mutates balance and log together under the caller-held lock.
func (m *MemoryLedger) append(userID string, txType domain.TransactionType, amount int, description string) *domain.PointTransaction {
	if txType == domain.TransactionDeduct {
		m.balances[userID] -= amount
	} else {
		m.balances[userID] += amount
	}
	entry := domain.PointTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: m.balances[userID],
		Description:  description,
		CreatedAt:    m.now(),
	}
	m.logs[userID] = append(m.logs[userID], entry)
	out := entry
	return &out
}

var _ domain.LedgerStore = (*MemoryLedger)(nil)
