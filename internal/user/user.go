// Package user manages accounts and their monthly free question allowance.
package user

import (
	"errors"
	"time"
)

// Errors
var (
	ErrUserNotFound           = errors.New("user: not found")
	ErrEmailTaken             = errors.New("user: email already registered")
	ErrFreeAllowanceExhausted = errors.New("user: free allowance exhausted")
)

// FreeMessageLimit is the number of questions every user may ask per calendar
// month without a paid bundle.
const FreeMessageLimit = 3

// User represents an account on the platform.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	FreeMessagesUsed int       `json:"freeMessagesUsed"`
	FreeResetDate    time.Time `json:"freeResetDate"`
	StripeCustomerID string    `json:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NeedsFreeReset reports whether the free allowance must be reset before any
// quota decision: true when now falls in a different calendar month or year
// than the stored reset date. The day of month is deliberately ignored, so a
// reset can trigger after a single day (Jan 31 → Feb 1).
func (u *User) NeedsFreeReset(now time.Time) bool {
	return u.FreeResetDate.Month() != now.Month() || u.FreeResetDate.Year() != now.Year()
}

// HasFreeQuota reports whether a question may still be served from the free
// allowance. Callers must apply NeedsFreeReset first.
func (u *User) HasFreeQuota() bool {
	return u.FreeMessagesUsed < FreeMessageLimit
}
