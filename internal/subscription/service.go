package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/askmeter/internal/idgen"
	"github.com/mbd888/askmeter/internal/logging"
	"github.com/mbd888/askmeter/internal/metrics"
	"github.com/mbd888/askmeter/internal/syncutil"
)

// Notifier publishes bundle lifecycle events to interested listeners, such as
// the websocket feed. May be nil.
type Notifier interface {
	Publish(event string, payload interface{})
}

// Service implements bundle purchase, cancellation, and renewal.
type Service struct {
	store    Store
	history  HistoryStore
	payments PaymentProcessor
	notifier Notifier
	locks    *syncutil.ShardedMutex
	now      func() time.Time
}

// NewService creates a subscription service. notifier may be nil.
func NewService(store Store, history HistoryStore, payments PaymentProcessor, notifier Notifier) *Service {
	return &Service{
		store:    store,
		history:  history,
		payments: payments,
		notifier: notifier,
		locks:    syncutil.NewShardedMutex(),
		now:      time.Now,
	}
}

// CreateRequest is a bundle purchase.
type CreateRequest struct {
	UserID    string       `json:"userId"`
	Type      BundleType   `json:"bundleType"`
	Cycle     BillingCycle `json:"billingCycle"`
	AutoRenew *bool        `json:"autoRenew,omitempty"`
}

// Create purchases a new bundle for a user. Auto-renew defaults to on.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Bundle, error) {
	plan, ok := Plans[req.Type]
	if !ok {
		return nil, ErrInvalidBundleType
	}
	if !ValidBillingCycle(req.Cycle) {
		return nil, ErrInvalidBillingCycle
	}

	autoRenew := true
	if req.AutoRenew != nil {
		autoRenew = *req.AutoRenew
	}

	now := s.now()
	b := &Bundle{
		ID:           idgen.WithPrefix("sub_"),
		UserID:       req.UserID,
		Type:         req.Type,
		MaxMessages:  plan.MaxMessages,
		MessagesUsed: 0,
		PriceCents:   plan.PriceCents(req.Cycle),
		Cycle:        req.Cycle,
		StartDate:    now,
		EndDate:      PeriodEnd(now, req.Cycle),
		AutoRenew:    autoRenew,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.RenewalDate = b.EndDate

	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}

	metrics.BundlesCreatedTotal.WithLabelValues(string(b.Type)).Inc()
	s.publish("bundle_created", b)
	logging.L(ctx).Info("bundle created",
		"bundle_id", b.ID, "user_id", b.UserID, "type", b.Type, "cycle", b.Cycle)
	return b, nil
}

// Get returns a bundle by ID.
func (s *Service) Get(ctx context.Context, id string) (*Bundle, error) {
	return s.store.Get(ctx, id)
}

// ListByUser returns all of a user's bundles, active or not.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Bundle, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListActiveByUser returns a user's active bundles.
func (s *Service) ListActiveByUser(ctx context.Context, userID string) ([]*Bundle, error) {
	return s.store.ListActiveByUser(ctx, userID)
}

// History returns a user's completed billing periods.
func (s *Service) History(ctx context.Context, userID string) ([]*UsageHistory, error) {
	return s.history.ListByUser(ctx, userID)
}

// ToggleAutoRenew flips renewal on or off for an active bundle.
func (s *Service) ToggleAutoRenew(ctx context.Context, id string, value bool) (*Bundle, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, ErrInactiveBundle
	}

	b.AutoRenew = value
	b.UpdatedAt = s.now()
	if err := s.store.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Cancel turns off auto-renew and records a usage snapshot for the current
// period. The bundle stays active until its natural expiry.
func (s *Service) Cancel(ctx context.Context, id string) (*Bundle, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, ErrInactiveBundle
	}

	now := s.now()
	b.AutoRenew = false
	b.UpdatedAt = now
	if err := s.store.Update(ctx, b); err != nil {
		return nil, err
	}

	if err := s.snapshot(ctx, b, b.StartDate, now); err != nil {
		return nil, fmt.Errorf("record usage snapshot: %w", err)
	}

	logging.L(ctx).Info("bundle cancelled", "bundle_id", b.ID, "user_id", b.UserID)
	return b, nil
}

// ProcessRenewals scans for expired auto-renewing bundles and rolls each into
// a new billing period, or deactivates it when payment fails. Per-bundle
// errors are logged and do not stop the scan.
func (s *Service) ProcessRenewals(ctx context.Context) (renewed, deactivated int, err error) {
	now := s.now()
	due, err := s.store.ListExpiredAutoRenewing(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("list expired bundles: %w", err)
	}

	for _, b := range due {
		switch outcome, rerr := s.renewOne(ctx, b.ID); {
		case rerr != nil:
			metrics.RenewalsTotal.WithLabelValues("error").Inc()
			logging.L(ctx).Error("renewal failed",
				"bundle_id", b.ID, "user_id", b.UserID, "error", rerr)
		case outcome == renewOutcomeRenewed:
			renewed++
		case outcome == renewOutcomeDeactivated:
			deactivated++
		}
	}

	if len(due) > 0 {
		logging.L(ctx).Info("renewal scan complete",
			"due", len(due), "renewed", renewed, "deactivated", deactivated)
	}
	return renewed, deactivated, nil
}

type renewOutcome int

const (
	renewOutcomeSkipped renewOutcome = iota
	renewOutcomeRenewed
	renewOutcomeDeactivated
)

// renewOne re-reads the bundle under its lock so a concurrent cancel or an
// earlier scan pass cannot be clobbered.
func (s *Service) renewOne(ctx context.Context, id string) (renewOutcome, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return renewOutcomeSkipped, err
	}
	now := s.now()
	if !b.IsActive || !b.AutoRenew || b.EndDate.After(now) {
		return renewOutcomeSkipped, nil
	}

	plan := Plans[b.Type]
	price := plan.PriceCents(b.Cycle)
	desc := fmt.Sprintf("%s bundle %s renewal", b.Type, b.Cycle)

	if cerr := s.payments.Charge(ctx, b.UserID, price, desc); cerr != nil {
		if !errors.Is(cerr, ErrPaymentDeclined) {
			return renewOutcomeSkipped, cerr
		}
		b.IsActive = false
		b.UpdatedAt = now
		if err := s.store.Update(ctx, b); err != nil {
			return renewOutcomeSkipped, err
		}
		metrics.RenewalsTotal.WithLabelValues("deactivated").Inc()
		s.publish("bundle_deactivated", b)
		logging.L(ctx).Warn("payment declined, bundle deactivated",
			"bundle_id", b.ID, "user_id", b.UserID)
		return renewOutcomeDeactivated, nil
	}

	// The period must be archived before it is rolled; a lost snapshot aborts
	// the renewal and the bundle stays due for the next scan.
	if err := s.snapshot(ctx, b, b.StartDate, b.EndDate); err != nil {
		return renewOutcomeSkipped, fmt.Errorf("usage snapshot: %w", err)
	}

	b.StartDate = b.EndDate
	b.EndDate = PeriodEnd(b.StartDate, b.Cycle)
	b.RenewalDate = b.EndDate
	b.MessagesUsed = 0
	b.MaxMessages = plan.MaxMessages
	b.PriceCents = price
	b.UpdatedAt = now
	if err := s.store.Update(ctx, b); err != nil {
		return renewOutcomeSkipped, err
	}

	metrics.RenewalsTotal.WithLabelValues("renewed").Inc()
	s.publish("bundle_renewed", b)
	logging.L(ctx).Info("bundle renewed",
		"bundle_id", b.ID, "user_id", b.UserID, "period_end", b.EndDate)
	return renewOutcomeRenewed, nil
}

func (s *Service) snapshot(ctx context.Context, b *Bundle, start, end time.Time) error {
	return s.history.Create(ctx, &UsageHistory{
		ID:            idgen.WithPrefix("hist_"),
		UserID:        b.UserID,
		BundleID:      b.ID,
		MessagesCount: b.MessagesUsed,
		PeriodStart:   start,
		PeriodEnd:     end,
		CreatedAt:     s.now(),
	})
}

func (s *Service) publish(event string, b *Bundle) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(event, b)
}
