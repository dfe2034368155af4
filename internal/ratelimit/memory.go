package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory. Used by tests and by
// the API when neither Redis nor Postgres is configured.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memCounter
}

type memCounter struct {
	count     int64
	expiresAt time.Time
}

var _ CounterStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*memCounter)}
}

func (s *MemoryStore) Incr(ctx context.Context, identifier, endpoint string, windowStart time.Time, window time.Duration) (int64, error) {
	key := fmt.Sprintf("%s:%s:%d", endpoint, identifier, windowStart.Unix())

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok {
		c = &memCounter{expiresAt: windowStart.Add(window)}
		s.counters[key] = c
	}
	c.count++

	// Opportunistic sweep of expired windows.
	for k, entry := range s.counters {
		if entry.expiresAt.Before(now) && k != key {
			delete(s.counters, k)
		}
	}
	return c.count, nil
}
