package user

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory user store for demo/development.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*User  // by ID
	emails map[string]string // email → ID
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*User),
		emails: make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := m.emails[email]; exists {
		return ErrEmailTaken
	}

	cp := *u
	m.users[u.ID] = &cp
	m.emails[email] = u.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) IncrementFreeUsage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if u.FreeMessagesUsed >= FreeMessageLimit {
		return ErrFreeAllowanceExhausted
	}
	u.FreeMessagesUsed++
	u.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ResetFreeAllowance(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.FreeMessagesUsed = 0
	u.FreeResetDate = now
	u.UpdatedAt = now
	return nil
}

var _ Store = (*MemoryStore)(nil)
