package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is a process-local UserStore used when no database is
// configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetUser implements UserStore.
func (m *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// UpsertUser implements UserStore.
func (m *MemoryStore) UpsertUser(_ context.Context, u User) (*User, error) {
	if u.ID == "" {
		return nil, errors.New("upsert user: empty id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	m.users[u.ID] = u
	return &u, nil
}
