package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	audit "openmediamap/pkg/platform/audit"
)

const defaultQueryTimeout = 5 * time.Second

// Store persists admin actions in the append-only admin_actions table.
// Rows are only ever inserted; there is no update or delete path.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithQueryTimeout bounds each statement when the caller's context has no deadline.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: defaultQueryTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Append inserts one admin action.
func (s *Store) Append(ctx context.Context, adminUsername string, action audit.ActionType, recordID int64) (*audit.AdminAction, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	query := `
		INSERT INTO admin_actions (admin_username, action_type, record_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	entry := &audit.AdminAction{
		AdminUsername: adminUsername,
		ActionType:    action,
		RecordID:      recordID,
	}
	err := s.db.QueryRowContext(ctx, query, adminUsername, string(action), recordID).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert admin action: %w", err)
	}
	return entry, nil
}

// Recent returns the newest admin actions first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*audit.AdminAction, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	query := `
		SELECT id, admin_username, action_type, record_id, created_at
		FROM admin_actions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, audit.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query admin actions: %w", err)
	}
	defer rows.Close()

	return scanActions(rows)
}

func scanActions(rows *sql.Rows) ([]*audit.AdminAction, error) {
	actions := make([]*audit.AdminAction, 0)
	for rows.Next() {
		var (
			entry      audit.AdminAction
			actionType string
		)
		if err := rows.Scan(&entry.ID, &entry.AdminUsername, &actionType, &entry.RecordID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin action: %w", err)
		}
		parsed, err := audit.ParseActionType(actionType)
		if err != nil {
			return nil, err
		}
		entry.ActionType = parsed
		actions = append(actions, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin actions: %w", err)
	}
	return actions, nil
}
