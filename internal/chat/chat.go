// Package chat answers user questions against a two-tier quota: a monthly
// free allowance first, then the user's paid bundles.
package chat

import (
	"errors"
	"time"
)

// Errors
var (
	ErrSubscriptionRequired = errors.New("chat: free allowance exhausted and no active bundles")
	ErrQuotaExceeded        = errors.New("chat: all bundle quotas exhausted")
)

// ChatMessage is one answered question. Immutable once written.
type ChatMessage struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	TokensUsed    int       `json:"tokensUsed"`
	BundleID      string    `json:"bundleId,omitempty"`
	IsFreeMessage bool      `json:"isFreeMessage"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Source names which quota tier served a message.
func (m *ChatMessage) Source() string {
	if m.IsFreeMessage {
		return "free"
	}
	return "bundle"
}
