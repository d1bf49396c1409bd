package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"openmediamap/pkg/platform/sentinel"
)

// PostgresProfiles reads the user_profiles table.
type PostgresProfiles struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresProfiles(db *sql.DB, queryTimeout time.Duration) *PostgresProfiles {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &PostgresProfiles{db: db, timeout: queryTimeout}
}

func (s *PostgresProfiles) ByUID(ctx context.Context, uid string) (*Profile, error) {
	return s.one(ctx, `
		SELECT uid, username, role, bio, created_at
		FROM user_profiles WHERE uid = $1
	`, uid)
}

func (s *PostgresProfiles) ByUsername(ctx context.Context, username string) (*Profile, error) {
	return s.one(ctx, `
		SELECT uid, username, role, bio, created_at
		FROM user_profiles WHERE username = $1
	`, username)
}

func (s *PostgresProfiles) one(ctx context.Context, query string, arg string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		p   Profile
		bio sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.UID, &p.Username, &p.Role, &bio, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query user profile: %w", err)
	}
	if bio.Valid {
		p.Bio = &bio.String
	}
	return &p, nil
}
