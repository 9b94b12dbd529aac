package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"server/internal/domain"
)

// MemorySubscriptions implements domain.SubscriptionRepository with
// mutex-guarded maps, for tests and local development.
type MemorySubscriptions struct {
	mu   sync.Mutex
	subs map[string]domain.Subscription
}

// NewMemorySubscriptions creates an empty in-memory subscription repository.
func NewMemorySubscriptions() *MemorySubscriptions {
	return &MemorySubscriptions{subs: make(map[string]domain.Subscription)}
}

func (m *MemorySubscriptions) Create(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = *sub
	return nil
}

func (m *MemorySubscriptions) GetByID(_ context.Context, id string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := sub
	return &out, nil
}

func (m *MemorySubscriptions) ActiveByUser(_ context.Context, userID string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.UserID == userID && sub.Status == domain.SubscriptionActive {
			out := sub
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemorySubscriptions) UpdateStatus(_ context.Context, id string, status domain.SubscriptionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.Status = status
	m.subs[id] = sub
	return nil
}

func (m *MemorySubscriptions) ListLapsed(_ context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lapsed []domain.Subscription
	for _, sub := range m.subs {
		if sub.ExpirationDate.After(now) {
			continue
		}
		if sub.Status == domain.SubscriptionActive || sub.Status == domain.SubscriptionCancelled {
			lapsed = append(lapsed, sub)
		}
	}
	sort.Slice(lapsed, func(i, j int) bool {
		return lapsed[i].ExpirationDate.Before(lapsed[j].ExpirationDate)
	})
	if len(lapsed) > limit {
		lapsed = lapsed[:limit]
	}
	return lapsed, nil
}

func (m *MemorySubscriptions) Renew(_ context.Context, id string, expiration time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok || sub.Status != domain.SubscriptionActive {
		return domain.ErrNotFound
	}
	sub.ExpirationDate = expiration
	m.subs[id] = sub
	return nil
}

var _ domain.SubscriptionRepository = (*MemorySubscriptions)(nil)
