package user

import (
	"context"
	"time"
)

// Store persists user accounts and free-allowance counters.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error

	// IncrementFreeUsage atomically bumps the free counter by one, failing
	// with ErrFreeAllowanceExhausted if the counter is already at
	// FreeMessageLimit. The ceiling check happens before the debit.
	IncrementFreeUsage(ctx context.Context, id string) error

	// ResetFreeAllowance zeroes the free counter and stamps the reset date.
	ResetFreeAllowance(ctx context.Context, id string, now time.Time) error
}
