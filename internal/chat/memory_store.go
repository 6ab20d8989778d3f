package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/mbd888/askmeter/internal/pagination"
)

// MemoryStore is an in-memory chat message store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []*ChatMessage
}

// NewMemoryStore creates a new in-memory message store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, msg *ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

// ListByUser orders by (CreatedAt, ID) descending, matching the SQL store.
func (m *MemoryStore) ListByUser(_ context.Context, userID string, before *pagination.Cursor, limit int) ([]*ChatMessage, error) {
	m.mu.RLock()
	var out []*ChatMessage
	for _, msg := range m.messages {
		if msg.UserID != userID {
			continue
		}
		if before != nil && !olderThan(msg, before) {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// olderThan reports whether the message sits strictly before the cursor in
// (createdAt, id) order.
func olderThan(m *ChatMessage, c *pagination.Cursor) bool {
	if m.CreatedAt.Equal(c.CreatedAt) {
		return m.ID < c.ID
	}
	return m.CreatedAt.Before(c.CreatedAt)
}

var _ Store = (*MemoryStore)(nil)
