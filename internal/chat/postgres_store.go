package chat

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/mbd888/askmeter/internal/pagination"
)

// PostgresStore persists chat messages in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed message store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, m *ChatMessage) error {
	var bundleID sql.NullString
	if m.BundleID != "" {
		bundleID = sql.NullString{String: m.BundleID, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, user_id, question, answer, tokens_used,
			bundle_id, is_free_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.UserID, m.Question, m.Answer, m.TokensUsed,
		bundleID, m.IsFreeMessage, m.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]*ChatMessage, error) {
	query := `
		SELECT id, user_id, question, answer, tokens_used, bundle_id, is_free_message, created_at
		FROM chat_messages
		WHERE user_id = $1`
	args := []interface{}{userID}
	if before != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, before.CreatedAt, before.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ChatMessage
	for rows.Next() {
		m := &ChatMessage{}
		var bundleID sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Question, &m.Answer, &m.TokensUsed,
			&bundleID, &m.IsFreeMessage, &m.CreatedAt); err != nil {
			return nil, err
		}
		if bundleID.Valid {
			m.BundleID = bundleID.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
