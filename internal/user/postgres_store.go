package user

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed user store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, free_messages_used, free_reset_date,
			stripe_customer_id, created_at, updated_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.Name, u.FreeMessagesUsed, u.FreeResetDate,
		nullString(u.StripeCustomerID), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT id, email, name, free_messages_used, free_reset_date,
			stripe_customer_id, created_at, updated_at
		FROM users WHERE id = $1`, id))
}

func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT id, email, name, free_messages_used, free_reset_date,
			stripe_customer_id, created_at, updated_at
		FROM users WHERE email = LOWER($1)`, email))
}

func (p *PostgresStore) Update(ctx context.Context, u *User) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET name = $1, free_messages_used = $2, free_reset_date = $3,
			stripe_customer_id = $4, updated_at = $5
		WHERE id = $6`,
		u.Name, u.FreeMessagesUsed, u.FreeResetDate,
		nullString(u.StripeCustomerID), u.UpdatedAt, u.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// IncrementFreeUsage performs the ceiling check and the debit in one
// statement so concurrent requests cannot jointly overshoot the limit.
func (p *PostgresStore) IncrementFreeUsage(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET free_messages_used = free_messages_used + 1, updated_at = NOW()
		WHERE id = $1 AND free_messages_used < $2`,
		id, FreeMessageLimit,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing user from an exhausted counter.
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrFreeAllowanceExhausted
	}
	return nil
}

func (p *PostgresStore) ResetFreeAllowance(ctx context.Context, id string, now time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET free_messages_used = 0, free_reset_date = $1, updated_at = $1
		WHERE id = $2`, now, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (p *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	var stripeID sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.FreeMessagesUsed, &u.FreeResetDate,
		&stripeID, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if stripeID.Valid {
		u.StripeCustomerID = stripeID.String
	}
	return u, nil
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*PostgresStore)(nil)
