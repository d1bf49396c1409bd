package models

import (
	"time"

	dErrors "openmediamap/pkg/domain-errors"
	pstrings "openmediamap/pkg/platform/strings"
)

// Field limits, in runes.
const (
	MaxCaptionLen      = 500
	MaxSourceLen       = 500
	MaxPhotographerLen = 200
	MaxNotesLen        = 5000
	MaxDeleteReasonLen = 500
)

// DefaultDeleteReason is stored when an admin soft-deletes without a reason.
const DefaultDeleteReason = "Deleted by admin"

// Submission is a contributed historical photograph record.
//
// Invariants:
//   - Caption and Source are non-empty
//   - HasLocation is true iff Location is non-nil (and therefore valid)
//   - Status moves only pending -> approved or pending -> rejected, and only
//     while Deleted is false
//   - Deleted is set at most once; DeletedAt is written with it and never again
//   - Soft delete does not change Status
type Submission struct {
	ID           int64
	Caption      string
	Source       string
	Photographer *string
	Date         FlexibleDate
	PhotoURL     *string
	Location     *Coordinates
	HasLocation  bool
	Notes        *string
	OwnerID      string
	Status       Status
	Deleted      bool
	DeleteReason *string
	DeletedAt    *time.Time
	CreatedAt    time.Time
}

// Draft is unvalidated contributor input. Text fields are raw; numeric fields
// are nil when absent or unparseable.
type Draft struct {
	Caption      string
	Source       string
	Photographer string
	Year         *int
	Month        *int
	Day          *int
	Estimated    bool
	Lat          *float64
	Lng          *float64
	Notes        string
}

// NewSubmission normalises a draft into a pending record owned by owner.
// Text is trimmed and truncated to its limit; invalid coordinates are dropped.
func NewSubmission(draft Draft, owner string) (*Submission, error) {
	caption := pstrings.TrimTruncate(draft.Caption, MaxCaptionLen)
	source := pstrings.TrimTruncate(draft.Source, MaxSourceLen)
	if caption == "" || source == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "caption and source are required")
	}
	if owner == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "submission owner is required")
	}

	date := FlexibleDate{
		Year:      draft.Year,
		Month:     draft.Month,
		Day:       draft.Day,
		Estimated: draft.Estimated,
	}
	if err := date.Validate(); err != nil {
		return nil, err
	}

	location, hasLocation := NormalizeLocation(draft.Lat, draft.Lng)

	return &Submission{
		Caption:      caption,
		Source:       source,
		Photographer: pstrings.OptionalText(draft.Photographer, MaxPhotographerLen),
		Date:         date,
		Location:     location,
		HasLocation:  hasLocation,
		Notes:        pstrings.OptionalText(draft.Notes, MaxNotesLen),
		OwnerID:      owner,
		Status:       StatusPending,
	}, nil
}

// IsPending reports whether the record is awaiting a decision.
func (s *Submission) IsPending() bool {
	return s.Status == StatusPending && !s.Deleted
}

// IsPublic reports whether the record belongs on the public map and listings.
func (s *Submission) IsPublic() bool {
	return s.Status == StatusApproved && !s.Deleted
}

// CanTransition checks a moderation decision against the current state.
func (s *Submission) CanTransition(from, to Status) error {
	if s.Deleted {
		return dErrors.New(dErrors.CodeInvariantViolation, "submission is deleted")
	}
	if s.Status != from || !from.CanTransitionTo(to) {
		return dErrors.New(dErrors.CodeInvariantViolation, "submission is not "+string(from))
	}
	return nil
}

// CanSoftDelete checks that the record has not already been retired.
func (s *Submission) CanSoftDelete() error {
	if s.Deleted {
		return dErrors.New(dErrors.CodeInvariantViolation, "submission is already deleted")
	}
	return nil
}

// ApplySoftDelete retires the record. Call CanSoftDelete first.
func (s *Submission) ApplySoftDelete(reason string, now time.Time) {
	r := NormalizeDeleteReason(reason)
	s.Deleted = true
	s.DeleteReason = &r
	s.DeletedAt = &now
}

// NormalizeDeleteReason trims and bounds an admin-supplied reason.
func NormalizeDeleteReason(reason string) string {
	r := pstrings.TrimTruncate(reason, MaxDeleteReasonLen)
	if r == "" {
		return DefaultDeleteReason
	}
	return r
}
