package chat

import (
	"context"

	"github.com/mbd888/askmeter/internal/pagination"
)

// Store persists chat messages.
type Store interface {
	Create(ctx context.Context, m *ChatMessage) error

	// ListByUser returns the user's messages, newest first, at most limit.
	// A non-nil cursor restricts the page to messages strictly older than
	// the cursor position.
	ListByUser(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]*ChatMessage, error)
}
