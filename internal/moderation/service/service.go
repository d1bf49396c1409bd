// Package service is the moderation engine: it accepts contributor
// submissions and applies admin decisions with the audit trail attached.
//
// Concurrency is resolved entirely by the store's conditional updates. When two
// admins decide the same record at once, the store admits one write; the other
// sees a conflict and no audit entry is written for it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"openmediamap/internal/identity"
	"openmediamap/internal/objectstore"
	"openmediamap/internal/platform/metrics"
	"openmediamap/internal/submission/models"
	dErrors "openmediamap/pkg/domain-errors"
	audit "openmediamap/pkg/platform/audit"
	"openmediamap/pkg/platform/sentinel"
	"openmediamap/pkg/requestcontext"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// SubmitRequest is a contributor's submission: the parsed form fields plus
// optional photo bytes.
type SubmitRequest struct {
	Draft models.Draft
	Photo []byte
}

// UserStats is the public summary shown on a contributor's profile.
type UserStats struct {
	Username            string
	Bio                 *string
	JoinedAt            time.Time
	ApprovedSubmissions int
}

// Service orchestrates submission intake and moderation.
type Service struct {
	submissions SubmissionStore
	auditLog    AuditRecorder
	objects     ObjectStore
	profiles    ProfileDirectory
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithObjectStore enables photo uploads. Without it, submissions that carry a
// photo are refused.
func WithObjectStore(o ObjectStore) Option {
	return func(s *Service) {
		s.objects = o
	}
}

func WithProfiles(p ProfileDirectory) Option {
	return func(s *Service) {
		s.profiles = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service.
func New(submissions SubmissionStore, auditLog AuditRecorder, opts ...Option) (*Service, error) {
	if submissions == nil {
		return nil, errors.New("submission store is required")
	}
	if auditLog == nil {
		return nil, errors.New("audit recorder is required")
	}
	s := &Service{
		submissions: submissions,
		auditLog:    auditLog,
		logger:      slog.Default(),
		tracer:      otel.Tracer("openmediamap/moderation"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Submit validates a contributor's draft, uploads the photo if one is
// attached, and stores the record as pending. An upload failure or a
// cancelled request leaves nothing stored.
func (s *Service) Submit(ctx context.Context, who identity.Identity, req SubmitRequest) (*models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "moderation.Submit")
	defer span.End()

	if !who.IsAuthenticated() {
		return nil, s.fail(span, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
	}

	sub, err := models.NewSubmission(req.Draft, who.Owner())
	if err != nil {
		return nil, s.fail(span, toValidation(err))
	}

	if len(req.Photo) > 0 {
		url, err := s.uploadPhoto(ctx, req.Photo)
		if err != nil {
			return nil, s.fail(span, err)
		}
		sub.PhotoURL = &url
	}

	if err := ctx.Err(); err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled before the submission was saved"))
	}

	stored, err := s.submissions.Insert(ctx, sub)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, s.fail(span, err)
		}
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save submission"))
	}

	span.SetAttributes(attribute.Int64("submission.id", stored.ID), attribute.Bool("submission.has_location", stored.HasLocation))
	if s.metrics != nil {
		s.metrics.IncSubmissionsCreated()
	}
	s.logger.InfoContext(ctx, "submission received",
		"submission_id", stored.ID,
		"owner", stored.OwnerID,
		"has_photo", stored.PhotoURL != nil,
		"has_location", stored.HasLocation,
		"request_id", requestcontext.RequestID(ctx),
	)
	return stored, nil
}

func (s *Service) uploadPhoto(ctx context.Context, data []byte) (string, error) {
	image, err := objectstore.DetectImage(data)
	if err != nil {
		return "", err
	}
	if s.objects == nil {
		return "", dErrors.New(dErrors.CodeUpstream, "photo storage is not configured")
	}

	start := s.now()
	url, err := s.objects.Put(ctx, data, image)
	if s.metrics != nil {
		s.metrics.ObserveUpload(s.now().Sub(start), err)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "photo upload failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if _, ok := dErrors.As(err); ok {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeUpstream, "Failed to upload photo")
	}
	return url, nil
}

// Approve publishes a pending record.
func (s *Service) Approve(ctx context.Context, who identity.Identity, id int64) error {
	return s.decide(ctx, who, id, models.StatusApproved, audit.ActionApprove)
}

// Reject declines a pending record.
func (s *Service) Reject(ctx context.Context, who identity.Identity, id int64) error {
	return s.decide(ctx, who, id, models.StatusRejected, audit.ActionReject)
}

func (s *Service) decide(ctx context.Context, who identity.Identity, id int64, to models.Status, action audit.ActionType) error {
	ctx, span := s.tracer.Start(ctx, "moderation."+action.String(), trace.WithAttributes(
		attribute.Int64("submission.id", id),
	))
	defer span.End()

	if err := s.checkAdminTarget(who, id); err != nil {
		s.observe(action, "rejected")
		return s.fail(span, err)
	}

	err := s.submissions.TransitionStatus(ctx, id, models.StatusPending, to)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.observe(action, "conflict")
			s.logger.InfoContext(ctx, "moderation decision lost or target missing",
				"action_type", action.String(),
				"record_id", id,
				"admin_username", who.Username(),
				"request_id", requestcontext.RequestID(ctx),
			)
			return s.fail(span, dErrors.New(dErrors.CodeConflict, "Record not found or not pending"))
		}
		s.observe(action, "error")
		return s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action.String()+" submission"))
	}

	s.auditLog.Record(ctx, who.Username(), action, id)
	s.observe(action, "success")
	return nil
}

// SoftDelete retires a record from every listing without touching its status.
func (s *Service) SoftDelete(ctx context.Context, who identity.Identity, id int64, reason string) error {
	ctx, span := s.tracer.Start(ctx, "moderation.delete", trace.WithAttributes(
		attribute.Int64("submission.id", id),
	))
	defer span.End()

	action := audit.ActionDelete
	if err := s.checkAdminTarget(who, id); err != nil {
		s.observe(action, "rejected")
		return s.fail(span, err)
	}

	err := s.submissions.SoftDelete(ctx, id, models.NormalizeDeleteReason(reason))
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.observe(action, "conflict")
			return s.fail(span, dErrors.New(dErrors.CodeConflict, "Record not found or already deleted"))
		}
		s.observe(action, "error")
		return s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete submission"))
	}

	s.auditLog.Record(ctx, who.Username(), action, id)
	s.observe(action, "success")
	return nil
}

// ListApproved returns the public records, newest first.
func (s *Service) ListApproved(ctx context.Context) ([]*models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "moderation.ListApproved")
	defer span.End()

	subs, err := s.submissions.ListApproved(ctx)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approved submissions"))
	}
	return subs, nil
}

// ListPending returns the moderation queue, newest first.
func (s *Service) ListPending(ctx context.Context, who identity.Identity) ([]*models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "moderation.ListPending")
	defer span.End()

	if err := who.RequireAdmin(); err != nil {
		return nil, s.fail(span, err)
	}
	subs, err := s.submissions.ListPending(ctx)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending submissions"))
	}
	return subs, nil
}

// RecentActions returns the latest admin actions, newest first. limit is
// clamped to 1..audit.MaxRecent.
func (s *Service) RecentActions(ctx context.Context, who identity.Identity, limit int) ([]*audit.AdminAction, error) {
	ctx, span := s.tracer.Start(ctx, "moderation.RecentActions")
	defer span.End()

	if err := who.RequireAdmin(); err != nil {
		return nil, s.fail(span, err)
	}
	actions, err := s.auditLog.Recent(ctx, audit.ClampLimit(limit))
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin actions"))
	}
	return actions, nil
}

// UserStats returns a contributor's public profile summary. A failed count
// degrades to zero rather than failing the lookup.
func (s *Service) UserStats(ctx context.Context, username string) (*UserStats, error) {
	ctx, span := s.tracer.Start(ctx, "moderation.UserStats")
	defer span.End()

	if !usernamePattern.MatchString(username) {
		return nil, s.fail(span, dErrors.New(dErrors.CodeValidation, "Invalid username."))
	}
	if s.profiles == nil {
		return nil, s.fail(span, dErrors.New(dErrors.CodeInternal, "profile directory is not configured"))
	}

	profile, err := s.profiles.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.fail(span, dErrors.New(dErrors.CodeNotFound, "User not found."))
		}
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user"))
	}

	owner := profile.Username
	if owner == "" {
		owner = username
	}
	count, err := s.submissions.CountApprovedByOwner(ctx, owner)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count approved submissions",
			"error", err,
			"username", owner,
			"request_id", requestcontext.RequestID(ctx),
		)
		count = 0
	}

	return &UserStats{
		Username:            owner,
		Bio:                 profile.Bio,
		JoinedAt:            profile.CreatedAt,
		ApprovedSubmissions: count,
	}, nil
}

func (s *Service) checkAdminTarget(who identity.Identity, id int64) error {
	if err := who.RequireAdmin(); err != nil {
		return err
	}
	if id <= 0 {
		return dErrors.New(dErrors.CodeValidation, "Invalid id: "+strconv.FormatInt(id, 10))
	}
	return nil
}

func (s *Service) observe(action audit.ActionType, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveModeration(action.String(), outcome)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func toValidation(err error) error {
	if de, ok := dErrors.As(err); ok && de.Code == dErrors.CodeInvariantViolation {
		return dErrors.New(dErrors.CodeValidation, de.Message)
	}
	return err
}
