package subscription

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
)

// ErrPaymentDeclined signals a charge rejected by the processor. Renewal
// treats it as a business outcome (deactivate the bundle), not an infra
// failure.
var ErrPaymentDeclined = errors.New("subscription: payment declined")

// PaymentProcessor charges a user for a bundle purchase or renewal.
type PaymentProcessor interface {
	Charge(ctx context.Context, userID string, amountCents int64, description string) error
}

// SimulatedProcessor approves or declines charges at a configured rate.
// Used for local development and in the renewal tests.
type SimulatedProcessor struct {
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedProcessor creates a processor that declines the given fraction
// of charges, 0 <= failureRate < 1.
func NewSimulatedProcessor(failureRate float64, seed int64) *SimulatedProcessor {
	return &SimulatedProcessor{
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (s *SimulatedProcessor) Charge(_ context.Context, _ string, _ int64, _ string) error {
	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	if roll < s.failureRate {
		return ErrPaymentDeclined
	}
	return nil
}

var _ PaymentProcessor = (*SimulatedProcessor)(nil)

// StripeProcessor charges through Stripe PaymentIntents using the customer's
// saved payment method (off-session, as renewals run unattended).
type StripeProcessor struct {
	customerID func(ctx context.Context, userID string) (string, error)
}

// NewStripeProcessor creates a Stripe-backed processor. customerID resolves an
// internal user ID to its Stripe customer.
func NewStripeProcessor(secretKey string, customerID func(ctx context.Context, userID string) (string, error)) *StripeProcessor {
	stripe.Key = secretKey
	return &StripeProcessor{customerID: customerID}
}

func (s *StripeProcessor) Charge(ctx context.Context, userID string, amountCents int64, description string) error {
	custID, err := s.customerID(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve stripe customer: %w", err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Customer:    stripe.String(custID),
		Description: stripe.String(description),
		Confirm:     stripe.Bool(true),
		OffSession:  stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := paymentintent.New(params); err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return ErrPaymentDeclined
		}
		return fmt.Errorf("stripe charge: %w", err)
	}
	return nil
}

var _ PaymentProcessor = (*StripeProcessor)(nil)
