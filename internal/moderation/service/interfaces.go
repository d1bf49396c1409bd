package service

import (
	"context"

	"openmediamap/internal/identity"
	"openmediamap/internal/objectstore"
	"openmediamap/internal/submission/models"
	audit "openmediamap/pkg/platform/audit"
)

// SubmissionStore persists submissions. TransitionStatus and SoftDelete are
// single conditional writes and return sentinel.ErrConflict when no live row
// matched.
type SubmissionStore interface {
	Insert(ctx context.Context, sub *models.Submission) (*models.Submission, error)
	ListApproved(ctx context.Context) ([]*models.Submission, error)
	ListPending(ctx context.Context) ([]*models.Submission, error)
	TransitionStatus(ctx context.Context, id int64, from, to models.Status) error
	SoftDelete(ctx context.Context, id int64, reason string) error
	CountApprovedByOwner(ctx context.Context, owner string) (int, error)
}

// AuditRecorder appends to and reads the admin action log. Record never
// fails the caller; it returns nil when the append could not be persisted.
type AuditRecorder interface {
	Record(ctx context.Context, adminUsername string, action audit.ActionType, recordID int64) *audit.AdminAction
	Recent(ctx context.Context, limit int) ([]*audit.AdminAction, error)
}

// ObjectStore stores photo bytes and returns a public URL.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, image objectstore.ImageType) (string, error)
}

// ProfileDirectory resolves public user profiles.
type ProfileDirectory interface {
	ByUsername(ctx context.Context, username string) (*identity.Profile, error)
}
