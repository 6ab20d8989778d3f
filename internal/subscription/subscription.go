// Package subscription implements paid message bundles: purchase, auto-renew
// lifecycle, and the periodic renewal scan that rolls expired bundles into a
// new billing period or deactivates them on payment failure.
package subscription

import (
	"errors"
	"time"
)

// Errors
var (
	ErrBundleNotFound      = errors.New("subscription: bundle not found")
	ErrInactiveBundle      = errors.New("subscription: bundle is inactive")
	ErrInvalidBundleType   = errors.New("subscription: invalid bundle type")
	ErrInvalidBillingCycle = errors.New("subscription: invalid billing cycle")
	ErrBundleExhausted     = errors.New("subscription: bundle quota exhausted")
)

// BundleType identifies the pricing tier.
type BundleType string

const (
	TypeBasic      BundleType = "Basic"
	TypePro        BundleType = "Pro"
	TypeEnterprise BundleType = "Enterprise"
)

// BillingCycle is the renewal period of a bundle.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// EnterpriseMaxMessages models "unlimited" as a very large ceiling so the
// quota path stays uniform across tiers.
const EnterpriseMaxMessages = 1_000_000

// Bundle is a purchased subscription unit with its own message ceiling.
// An inactive bundle is terminal: it never serves quota resolution and never
// appears in renewal scans again.
type Bundle struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	Type         BundleType   `json:"bundleType"`
	MaxMessages  int          `json:"maxMessages"`
	MessagesUsed int          `json:"messagesUsed"`
	PriceCents   int64        `json:"priceCents"`
	Cycle        BillingCycle `json:"billingCycle"`
	StartDate    time.Time    `json:"startDate"`
	EndDate      time.Time    `json:"endDate"`
	RenewalDate  time.Time    `json:"renewalDate"`
	AutoRenew    bool         `json:"autoRenew"`
	IsActive     bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Remaining returns the unused message quota.
func (b *Bundle) Remaining() int {
	return b.MaxMessages - b.MessagesUsed
}

// UsageHistory is an immutable snapshot of one completed billing period,
// written on cancellation and on renewal. Append-only audit trail.
type UsageHistory struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	BundleID      string    `json:"bundleId"`
	MessagesCount int       `json:"messagesCount"`
	PeriodStart   time.Time `json:"periodStart"`
	PeriodEnd     time.Time `json:"periodEnd"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PlanConfig defines the ceiling and prices for a tier.
type PlanConfig struct {
	MaxMessages  int
	MonthlyCents int64
	YearlyCents  int64
}

// Plans is the hardcoded bundle catalogue.
var Plans = map[BundleType]PlanConfig{
	TypeBasic:      {MaxMessages: 10, MonthlyCents: 999, YearlyCents: 9999},
	TypePro:        {MaxMessages: 100, MonthlyCents: 2999, YearlyCents: 29999},
	TypeEnterprise: {MaxMessages: EnterpriseMaxMessages, MonthlyCents: 9999, YearlyCents: 99999},
}

// ValidBundleType returns true if the tier name is recognised.
func ValidBundleType(t BundleType) bool {
	_, ok := Plans[t]
	return ok
}

// ValidBillingCycle returns true if the cycle name is recognised.
func ValidBillingCycle(c BillingCycle) bool {
	return c == CycleMonthly || c == CycleYearly
}

// PriceCents returns the plan price for a billing cycle.
func (p PlanConfig) PriceCents(cycle BillingCycle) int64 {
	if cycle == CycleYearly {
		return p.YearlyCents
	}
	return p.MonthlyCents
}

// PeriodEnd advances a period start by one billing cycle.
func PeriodEnd(start time.Time, cycle BillingCycle) time.Time {
	if cycle == CycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
