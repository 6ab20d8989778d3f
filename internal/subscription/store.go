package subscription

import (
	"context"
	"time"
)

// Store persists subscription bundles.
type Store interface {
	Create(ctx context.Context, b *Bundle) error
	Get(ctx context.Context, id string) (*Bundle, error)
	ListByUser(ctx context.Context, userID string) ([]*Bundle, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*Bundle, error)
	Update(ctx context.Context, b *Bundle) error

	// IncrementUsage atomically debits one message from the bundle, failing
	// with ErrBundleExhausted when no quota remains and ErrInactiveBundle
	// when the bundle is no longer active. The ceiling check happens before
	// the debit, never after.
	IncrementUsage(ctx context.Context, id string) error

	// ListExpiredAutoRenewing returns active auto-renewing bundles whose
	// end date is at or before now. Feeds the renewal scan.
	ListExpiredAutoRenewing(ctx context.Context, now time.Time) ([]*Bundle, error)
}

// HistoryStore persists the append-only usage audit trail.
type HistoryStore interface {
	Create(ctx context.Context, h *UsageHistory) error
	ListByUser(ctx context.Context, userID string) ([]*UsageHistory, error)
	ListByBundle(ctx context.Context, bundleID string) ([]*UsageHistory, error)
}
