package billing

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store used by tests and by the API when
// no database is configured. It comes pre-seeded with the standard
// package catalogue when constructed via NewMemoryStore.
type MemoryStore struct {
	mu            sync.RWMutex
	packages      map[string]Package
	subscriptions map[string]Subscription
	payments      map[string]Payment
}

// DefaultPackages is the catalogue seeded into a fresh MemoryStore.
// The zero-price Gratis tier is the default for new users.
var DefaultPackages = []Package{
	{ID: "pkg-gratis", Nama: "Gratis", Harga: 0, DurasiHari: 0, BatasKebun: 1, Aktif: true},
	{ID: "pkg-standar", Nama: "Standar", Harga: 149000, DurasiHari: 30, BatasKebun: 5, Aktif: true},
	{ID: "pkg-premium", Nama: "Premium", Harga: 299000, DurasiHari: 30, BatasKebun: 0, Aktif: true},
}

// NewMemoryStore constructs a MemoryStore seeded with DefaultPackages.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		packages:      make(map[string]Package),
		subscriptions: make(map[string]Subscription),
		payments:      make(map[string]Payment),
	}
	for _, p := range DefaultPackages {
		p.CreatedAt = time.Now().UTC()
		m.packages[p.ID] = p
	}
	return m
}

// PutPackage installs or replaces a package. Test helper.
func (m *MemoryStore) PutPackage(p Package) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packages[p.ID] = p
}

func (m *MemoryStore) ListPackages(_ context.Context, activeOnly bool) ([]Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Package, 0, len(m.packages))
	for _, p := range m.packages {
		if activeOnly && !p.Aktif {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Harga < out[j].Harga })
	return out, nil
}

func (m *MemoryStore) GetPackage(_ context.Context, id string) (*Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.packages[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

func (m *MemoryStore) GetDefaultPackage(_ context.Context) (*Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Package
	for _, p := range m.packages {
		if !p.Aktif || p.Harga != 0 {
			continue
		}
		cp := p
		if best == nil || cp.ID < best.ID {
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (m *MemoryStore) CreateSubscription(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Status == SubscriptionStatusActive {
		for _, cur := range m.subscriptions {
			if cur.UserID == s.UserID && cur.Status == SubscriptionStatusActive {
				return ErrConflict
			}
		}
	}
	m.subscriptions[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetActiveSubscription(_ context.Context, userID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subscriptions {
		if s.UserID == userID && s.Status == SubscriptionStatusActive {
			out := s
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateSubscription(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[s.ID]; !ok {
		return ErrNotFound
	}
	m.subscriptions[s.ID] = *s
	return nil
}

func (m *MemoryStore) CreatePayment(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetPayment(_ context.Context, id string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

func (m *MemoryStore) ListPaymentsByUser(_ context.Context, userID string) ([]Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Payment, 0)
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListPaymentsByStatus(_ context.Context, status string) ([]Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Payment, 0)
	for _, p := range m.payments {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SetPaymentStatus(_ context.Context, id, from, to, verifiedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	if verifiedBy == "" {
		p.VerifiedBy = ""
		p.VerifiedAt = nil
	} else {
		now := time.Now().UTC()
		p.VerifiedBy = verifiedBy
		p.VerifiedAt = &now
	}
	m.payments[id] = p
	return true, nil
}
