package subscription

import (
	"context"
	"database/sql"
	"time"
)

const bundleColumns = `id, user_id, bundle_type, max_messages, messages_used,
	price_cents, billing_cycle, start_date, end_date, renewal_date,
	auto_renew, is_active, created_at, updated_at`

// PostgresStore persists bundles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed bundle store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, b *Bundle) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscription_bundles (`+bundleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.ID, b.UserID, b.Type, b.MaxMessages, b.MessagesUsed,
		b.PriceCents, b.Cycle, b.StartDate, b.EndDate, b.RenewalDate,
		b.AutoRenew, b.IsActive, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Bundle, error) {
	return scanBundle(p.db.QueryRowContext(ctx, `
		SELECT `+bundleColumns+` FROM subscription_bundles WHERE id = $1`, id))
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Bundle, error) {
	return p.list(ctx, `
		SELECT `+bundleColumns+` FROM subscription_bundles
		WHERE user_id = $1 ORDER BY id`, userID)
}

func (p *PostgresStore) ListActiveByUser(ctx context.Context, userID string) ([]*Bundle, error) {
	return p.list(ctx, `
		SELECT `+bundleColumns+` FROM subscription_bundles
		WHERE user_id = $1 AND is_active = TRUE ORDER BY id`, userID)
}

func (p *PostgresStore) Update(ctx context.Context, b *Bundle) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE subscription_bundles SET max_messages = $1, messages_used = $2,
			price_cents = $3, billing_cycle = $4, start_date = $5, end_date = $6,
			renewal_date = $7, auto_renew = $8, is_active = $9, updated_at = $10
		WHERE id = $11`,
		b.MaxMessages, b.MessagesUsed, b.PriceCents, b.Cycle, b.StartDate,
		b.EndDate, b.RenewalDate, b.AutoRenew, b.IsActive, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBundleNotFound
	}
	return nil
}

// IncrementUsage performs the ceiling check and the debit in one statement so
// concurrent requests cannot jointly overshoot the bundle's quota.
func (p *PostgresStore) IncrementUsage(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE subscription_bundles
		SET messages_used = messages_used + 1, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE AND messages_used < max_messages`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish missing from inactive from exhausted.
		var active bool
		err := p.db.QueryRowContext(ctx,
			`SELECT is_active FROM subscription_bundles WHERE id = $1`, id).Scan(&active)
		if err == sql.ErrNoRows {
			return ErrBundleNotFound
		}
		if err != nil {
			return err
		}
		if !active {
			return ErrInactiveBundle
		}
		return ErrBundleExhausted
	}
	return nil
}

func (p *PostgresStore) ListExpiredAutoRenewing(ctx context.Context, now time.Time) ([]*Bundle, error) {
	return p.list(ctx, `
		SELECT `+bundleColumns+` FROM subscription_bundles
		WHERE is_active = TRUE AND auto_renew = TRUE AND end_date <= $1
		ORDER BY id`, now)
}

func (p *PostgresStore) list(ctx context.Context, query string, args ...interface{}) ([]*Bundle, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Bundle
	for rows.Next() {
		b := &Bundle{}
		if err := rows.Scan(&b.ID, &b.UserID, &b.Type, &b.MaxMessages, &b.MessagesUsed,
			&b.PriceCents, &b.Cycle, &b.StartDate, &b.EndDate, &b.RenewalDate,
			&b.AutoRenew, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBundle(row *sql.Row) (*Bundle, error) {
	b := &Bundle{}
	err := row.Scan(&b.ID, &b.UserID, &b.Type, &b.MaxMessages, &b.MessagesUsed,
		&b.PriceCents, &b.Cycle, &b.StartDate, &b.EndDate, &b.RenewalDate,
		&b.AutoRenew, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBundleNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

var _ Store = (*PostgresStore)(nil)

// PostgresHistoryStore persists usage history in PostgreSQL.
type PostgresHistoryStore struct {
	db *sql.DB
}

// NewPostgresHistoryStore creates a new PostgreSQL-backed history store.
func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (p *PostgresHistoryStore) Create(ctx context.Context, h *UsageHistory) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO usage_history (id, user_id, bundle_id, messages_count,
			period_start, period_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.UserID, h.BundleID, h.MessagesCount,
		h.PeriodStart, h.PeriodEnd, h.CreatedAt,
	)
	return err
}

func (p *PostgresHistoryStore) ListByUser(ctx context.Context, userID string) ([]*UsageHistory, error) {
	return p.list(ctx, `
		SELECT id, user_id, bundle_id, messages_count, period_start, period_end, created_at
		FROM usage_history WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (p *PostgresHistoryStore) ListByBundle(ctx context.Context, bundleID string) ([]*UsageHistory, error) {
	return p.list(ctx, `
		SELECT id, user_id, bundle_id, messages_count, period_start, period_end, created_at
		FROM usage_history WHERE bundle_id = $1 ORDER BY created_at`, bundleID)
}

func (p *PostgresHistoryStore) list(ctx context.Context, query string, args ...interface{}) ([]*UsageHistory, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*UsageHistory
	for rows.Next() {
		h := &UsageHistory{}
		if err := rows.Scan(&h.ID, &h.UserID, &h.BundleID, &h.MessagesCount,
			&h.PeriodStart, &h.PeriodEnd, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

var _ HistoryStore = (*PostgresHistoryStore)(nil)
