package subscription

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory bundle store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string]*Bundle // by ID
}

// NewMemoryStore creates a new in-memory bundle store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bundles: make(map[string]*Bundle)}
}

func (m *MemoryStore) Create(_ context.Context, b *Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *b
	m.bundles[b.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bundles[id]
	if !ok {
		return nil, ErrBundleNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(b *Bundle) bool { return b.UserID == userID }), nil
}

func (m *MemoryStore) ListActiveByUser(_ context.Context, userID string) ([]*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(b *Bundle) bool { return b.UserID == userID && b.IsActive }), nil
}

func (m *MemoryStore) Update(_ context.Context, b *Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bundles[b.ID]; !ok {
		return ErrBundleNotFound
	}
	cp := *b
	m.bundles[b.ID] = &cp
	return nil
}

func (m *MemoryStore) IncrementUsage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bundles[id]
	if !ok {
		return ErrBundleNotFound
	}
	if !b.IsActive {
		return ErrInactiveBundle
	}
	if b.MessagesUsed >= b.MaxMessages {
		return ErrBundleExhausted
	}
	b.MessagesUsed++
	b.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListExpiredAutoRenewing(_ context.Context, now time.Time) ([]*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(b *Bundle) bool {
		return b.IsActive && b.AutoRenew && !b.EndDate.After(now)
	}), nil
}

// collect copies matching bundles, ordered by ID for deterministic output.
// Callers must hold at least a read lock.
func (m *MemoryStore) collect(match func(*Bundle) bool) []*Bundle {
	var out []*Bundle
	for _, b := range m.bundles {
		if match(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ Store = (*MemoryStore)(nil)

// MemoryHistoryStore is an in-memory usage history store.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	entries []*UsageHistory
}

// NewMemoryHistoryStore creates a new in-memory history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (m *MemoryHistoryStore) Create(_ context.Context, h *UsageHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *h
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MemoryHistoryStore) ListByUser(_ context.Context, userID string) ([]*UsageHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*UsageHistory
	for _, h := range m.entries {
		if h.UserID == userID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryHistoryStore) ListByBundle(_ context.Context, bundleID string) ([]*UsageHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*UsageHistory
	for _, h := range m.entries {
		if h.BundleID == bundleID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ HistoryStore = (*MemoryHistoryStore)(nil)
