package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryUserStore is an in-memory UserStore used by tests and by the
// API when no database is configured.
type MemoryUserStore struct {
	mu        sync.RWMutex
	byID      map[string]*User
	bySubject map[string]*User
	byEmail   map[string]*User
}

var _ UserStore = (*MemoryUserStore)(nil)

// NewMemoryUserStore returns an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:      make(map[string]*User),
		bySubject: make(map[string]*User),
		byEmail:   make(map[string]*User),
	}
}

func (s *MemoryUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := s.bySubject[u.Subject]; ok {
		return ErrConflict
	}
	if email != "" {
		if _, ok := s.byEmail[email]; ok {
			return ErrConflict
		}
	}
	cp := *u
	s.byID[u.ID] = &cp
	s.bySubject[u.Subject] = &cp
	if email != "" {
		s.byEmail[email] = &cp
	}
	return nil
}

func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.byID[id])
}

func (s *MemoryUserStore) FindBySubject(ctx context.Context, subject string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.bySubject[subject])
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.byEmail[strings.ToLower(email)])
}

func (s *MemoryUserStore) List(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryUserStore) UpdateStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	return nil
}

func (s *MemoryUserStore) UpdateRole(ctx context.Context, id string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	return nil
}

// SetStatus flips an account's status; helper for disabled-user paths.
func (s *MemoryUserStore) SetStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		u.Status = status
	}
}

// Count reports the number of stored users.
func (s *MemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func copyUser(u *User) (*User, error) {
	if u == nil {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// MemoryAPIKeyStore is the in-memory APIKeyStore counterpart.
type MemoryAPIKeyStore struct {
	mu     sync.RWMutex
	byHash map[string]*APIKey
}

var _ APIKeyStore = (*MemoryAPIKeyStore)(nil)

// NewMemoryAPIKeyStore returns an empty store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{byHash: make(map[string]*APIKey)}
}

func (s *MemoryAPIKeyStore) Create(ctx context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[key.KeyHash]; ok {
		return ErrConflict
	}
	cp := *key
	s.byHash[key.KeyHash] = &cp
	return nil
}

func (s *MemoryAPIKeyStore) FindByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.byHash[keyHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (s *MemoryAPIKeyStore) ListByUser(ctx context.Context, userID string) ([]APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []APIKey
	for _, k := range s.byHash {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}
