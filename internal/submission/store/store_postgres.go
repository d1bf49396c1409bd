package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"openmediamap/internal/submission/models"
	dErrors "openmediamap/pkg/domain-errors"
	"openmediamap/pkg/platform/sentinel"
	"openmediamap/pkg/requestcontext"
)

const defaultQueryTimeout = 5 * time.Second

// pq error classes surfaced as validation failures rather than storage faults.
const (
	pqCheckViolation   = "23514"
	pqNotNullViolation = "23502"
	pqStringTooLong    = "22001"
)

const selectColumns = `
	id, caption, source, photographer, year, month, day, estimated, photo_url,
	ST_Y(geom), ST_X(geom), location, notes, user_id, status,
	deleted, delete_reason, deleted_at, created_at`

// PostgresStore persists submissions in PostgreSQL with a PostGIS point column.
// Moderation writes are single conditional UPDATEs; the affected row count is
// the sole signal of whether the write took effect.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithQueryTimeout bounds each statement when the caller's context has no deadline.
func WithQueryTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, timeout: defaultQueryTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Insert stores a new pending submission and returns it with ID and CreatedAt.
func (s *PostgresStore) Insert(ctx context.Context, sub *models.Submission) (*models.Submission, error) {
	if err := validateInsert(sub); err != nil {
		return nil, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var lat, lng sql.NullFloat64
	if sub.HasLocation && sub.Location != nil {
		lat = sql.NullFloat64{Float64: sub.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: sub.Location.Lng, Valid: true}
	}

	query := `
		INSERT INTO submissions (
			caption, source, photographer, year, month, day, estimated,
			photo_url, geom, location, notes, user_id, status, deleted, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, ST_SetSRID(ST_MakePoint($9::double precision, $10::double precision), 4326),
			$11, $12, $13, 'pending', FALSE, COALESCE($14::timestamptz, NOW())
		)
		RETURNING id, created_at
	`
	stored := clone(sub)
	stored.Status = models.StatusPending
	stored.Deleted = false
	stored.DeleteReason = nil
	stored.DeletedAt = nil
	if !lat.Valid {
		stored.Location = nil
		stored.HasLocation = false
	}

	err := s.db.QueryRowContext(ctx, query,
		nullString(sub.Caption), nullString(sub.Source), sub.Photographer,
		nullInt(sub.Date.Year), nullInt(sub.Date.Month), nullInt(sub.Date.Day), sub.Date.Estimated,
		sub.PhotoURL, lng, lat, lat.Valid, sub.Notes, sub.OwnerID, requestTime(ctx),
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, classify("insert submission", err)
	}
	return stored, nil
}

// FindByID returns a single submission regardless of status or deletion.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Submission, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) ListApproved(ctx context.Context) ([]*models.Submission, error) {
	return s.listByStatus(ctx, models.StatusApproved)
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]*models.Submission, error) {
	return s.listByStatus(ctx, models.StatusPending)
}

func (s *PostgresStore) listByStatus(ctx context.Context, status models.Status) ([]*models.Submission, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	query := `SELECT ` + selectColumns + `
		FROM submissions
		WHERE status = $1 AND deleted = FALSE
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list %s submissions: %w", status, err)
	}
	defer rows.Close()

	out := make([]*models.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountApprovedByOwner(ctx context.Context, owner string) (int, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE user_id = $1 AND status = 'approved' AND deleted = FALSE
	`, owner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count approved submissions: %w", err)
	}
	return n, nil
}

// TransitionStatus moves a live record from one status to another in a single
// guarded statement. Zero affected rows yields sentinel.ErrConflict.
func (s *PostgresStore) TransitionStatus(ctx context.Context, id int64, from, to models.Status) error {
	if !from.CanTransitionTo(to) {
		return dErrors.New(dErrors.CodeInvariantViolation, "status transition "+string(from)+" -> "+string(to)+" is not allowed")
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET status = $3
		WHERE id = $1 AND status = $2 AND deleted = FALSE
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	return requireOneRow(res)
}

// SoftDelete retires a live record; status is left untouched.
func (s *PostgresStore) SoftDelete(ctx context.Context, id int64, reason string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET deleted = TRUE, delete_reason = $2, deleted_at = COALESCE($3::timestamptz, NOW())
		WHERE id = $1 AND deleted = FALSE
	`, id, models.NormalizeDeleteReason(reason), requestTime(ctx))
	if err != nil {
		return fmt.Errorf("soft delete submission: %w", err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub          models.Submission
		photographer sql.NullString
		year         sql.NullInt64
		month        sql.NullInt64
		day          sql.NullInt64
		photoURL     sql.NullString
		lat, lng     sql.NullFloat64
		notes        sql.NullString
		status       string
		deleteReason sql.NullString
		deletedAt    sql.NullTime
	)
	err := row.Scan(
		&sub.ID, &sub.Caption, &sub.Source, &photographer, &year, &month, &day,
		&sub.Date.Estimated, &photoURL, &lat, &lng, &sub.HasLocation, &notes, &sub.OwnerID,
		&status, &sub.Deleted, &deleteReason, &deletedAt, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	sub.Status = parsed
	sub.Photographer = stringPtr(photographer)
	sub.PhotoURL = stringPtr(photoURL)
	sub.Notes = stringPtr(notes)
	sub.DeleteReason = stringPtr(deleteReason)
	sub.Date.Year = intPtr(year)
	sub.Date.Month = intPtr(month)
	sub.Date.Day = intPtr(day)
	if deletedAt.Valid {
		t := deletedAt.Time
		sub.DeletedAt = &t
	}
	if sub.HasLocation && lat.Valid && lng.Valid {
		sub.Location = &models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	} else {
		sub.HasLocation = false
	}
	return &sub, nil
}

// classify turns constraint violations into validation errors and wraps
// everything else as a storage failure.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqCheckViolation, pqNotNullViolation, pqStringTooLong:
			return dErrors.Wrap(err, dErrors.CodeValidation, "submission rejected by store constraints")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requestTime is the time pinned on the request, or NULL so the database
// clock applies.
func requestTime(ctx context.Context) sql.NullTime {
	t, ok := requestcontext.TimeFrom(ctx)
	return sql.NullTime{Time: t, Valid: ok}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
