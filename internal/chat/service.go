package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/askmeter/internal/answer"
	"github.com/mbd888/askmeter/internal/idgen"
	"github.com/mbd888/askmeter/internal/logging"
	"github.com/mbd888/askmeter/internal/metrics"
	"github.com/mbd888/askmeter/internal/pagination"
	"github.com/mbd888/askmeter/internal/subscription"
	"github.com/mbd888/askmeter/internal/syncutil"
	"github.com/mbd888/askmeter/internal/traces"
	"github.com/mbd888/askmeter/internal/user"
)

// BundleProvider is the slice of the bundle store the quota resolver needs.
// Satisfied by subscription.Store.
type BundleProvider interface {
	ListActiveByUser(ctx context.Context, userID string) ([]*subscription.Bundle, error)
	IncrementUsage(ctx context.Context, id string) error
}

// Notifier publishes answered questions to interested listeners, such as the
// websocket feed. May be nil.
type Notifier interface {
	Publish(event string, payload interface{})
}

// DefaultHistoryLimit caps how many messages History returns when the caller
// does not say.
const DefaultHistoryLimit = 50

// Service resolves quota and answers questions.
type Service struct {
	users     user.Store
	bundles   BundleProvider
	messages  Store
	generator answer.Generator
	notifier  Notifier
	locks     *syncutil.ShardedMutex
	now       func() time.Time
}

// NewService creates a chat service. notifier may be nil.
func NewService(users user.Store, bundles BundleProvider, messages Store, generator answer.Generator, notifier Notifier) *Service {
	return &Service{
		users:     users,
		bundles:   bundles,
		messages:  messages,
		generator: generator,
		notifier:  notifier,
		locks:     syncutil.NewShardedMutex(),
		now:       time.Now,
	}
}

// Ask answers a question for a user, charging the free allowance first and a
// paid bundle after that. The per-user lock serializes the quota
// read-modify-write so concurrent requests cannot overshoot either tier.
func (s *Service) Ask(ctx context.Context, userID, question string) (*ChatMessage, error) {
	ctx, span := traces.StartSpan(ctx, "chat.ask", traces.UserID(userID))
	defer span.End()

	unlock := s.locks.Lock(userID)
	defer unlock()

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if u.NeedsFreeReset(now) {
		if err := s.users.ResetFreeAllowance(ctx, userID, now); err != nil {
			return nil, fmt.Errorf("reset free allowance: %w", err)
		}
		u.FreeMessagesUsed = 0
		u.FreeResetDate = now
		logging.L(ctx).Info("free allowance reset", "user_id", userID)
	}

	if u.HasFreeQuota() {
		return s.askFree(ctx, u, question)
	}

	bundles, err := s.bundles.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 {
		metrics.QuotaDenialsTotal.WithLabelValues("no_subscription").Inc()
		return nil, ErrSubscriptionRequired
	}

	chosen := selectBundle(bundles)
	if chosen == nil {
		metrics.QuotaDenialsTotal.WithLabelValues("quota_exhausted").Inc()
		return nil, ErrQuotaExceeded
	}
	span.SetAttributes(traces.BundleID(chosen.ID), traces.QuotaSource("bundle"))

	return s.askBundle(ctx, u, chosen, question)
}

// askFree serves a question from the monthly free allowance. Bundles are
// never consulted on this path.
func (s *Service) askFree(ctx context.Context, u *user.User, question string) (*ChatMessage, error) {
	msg, err := s.answer(ctx, u.ID, question, "", true)
	if err != nil {
		return nil, err
	}
	if err := s.users.IncrementFreeUsage(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("debit free allowance: %w", err)
	}
	metrics.QuestionsServedTotal.WithLabelValues("free").Inc()
	return msg, nil
}

func (s *Service) askBundle(ctx context.Context, u *user.User, b *subscription.Bundle, question string) (*ChatMessage, error) {
	msg, err := s.answer(ctx, u.ID, question, b.ID, false)
	if err != nil {
		return nil, err
	}
	if err := s.bundles.IncrementUsage(ctx, b.ID); err != nil {
		return nil, fmt.Errorf("debit bundle %s: %w", b.ID, err)
	}
	metrics.QuestionsServedTotal.WithLabelValues("bundle").Inc()
	return msg, nil
}

// answer generates and persists the message. Quota is only debited by callers
// after this succeeds.
func (s *Service) answer(ctx context.Context, userID, question, bundleID string, free bool) (*ChatMessage, error) {
	a, err := s.generator.Generate(ctx, question)
	if err != nil {
		return nil, err
	}

	msg := &ChatMessage{
		ID:            idgen.WithPrefix("msg_"),
		UserID:        userID,
		Question:      question,
		Answer:        a.Text,
		TokensUsed:    a.TokensUsed,
		BundleID:      bundleID,
		IsFreeMessage: free,
		CreatedAt:     s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	metrics.AnswerTokensTotal.Add(float64(a.TokensUsed))
	if s.notifier != nil {
		s.notifier.Publish("question_answered", msg)
	}
	logging.L(ctx).Info("question answered",
		"user_id", userID, "message_id", msg.ID, "source", msg.Source(), "tokens", msg.TokensUsed)
	return msg, nil
}

// HistoryPage is one page of a user's message history, newest first.
type HistoryPage struct {
	Messages   []*ChatMessage `json:"messages"`
	NextCursor string         `json:"nextCursor,omitempty"`
	HasMore    bool           `json:"hasMore"`
}

// History returns the user's most recent messages, newest first. A non-nil
// cursor resumes from a previous page.
func (s *Service) History(ctx context.Context, userID string, before *pagination.Cursor, limit int) (*HistoryPage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	msgs, err := s.messages.ListByUser(ctx, userID, before, limit+1)
	if err != nil {
		return nil, err
	}
	page, next, more := pagination.ComputePage(msgs, limit, func(m *ChatMessage) (time.Time, string) {
		return m.CreatedAt, m.ID
	})
	return &HistoryPage{Messages: page, NextCursor: next, HasMore: more}, nil
}

// selectBundle picks the active bundle with the most remaining quota, ties
// broken by ascending bundle ID. Returns nil when every bundle is exhausted.
func selectBundle(bundles []*subscription.Bundle) *subscription.Bundle {
	var best *subscription.Bundle
	for _, b := range bundles {
		if b.Remaining() <= 0 {
			continue
		}
		if best == nil || b.Remaining() > best.Remaining() ||
			(b.Remaining() == best.Remaining() && b.ID < best.ID) {
			best = b
		}
	}
	return best
}
