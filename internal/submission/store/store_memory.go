package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"openmediamap/internal/submission/models"
	dErrors "openmediamap/pkg/domain-errors"
	"openmediamap/pkg/platform/sentinel"
	"openmediamap/pkg/requestcontext"
)

// InMemory is a process-local submission store. Every conditional write checks
// its precondition and applies the change under one lock, so it honours the
// same contract as the Postgres store: of two racing decisions, one wins.
type InMemory struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*models.Submission
	now     func() time.Time
}

// InMemoryOption configures an InMemory store.
type InMemoryOption func(*InMemory)

// WithClock overrides the creation/deletion timestamp source.
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemory) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInMemory(opts ...InMemoryOption) *InMemory {
	s := &InMemory{
		records: make(map[int64]*models.Submission),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Insert(ctx context.Context, sub *models.Submission) (*models.Submission, error) {
	if err := validateInsert(sub); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := clone(sub)
	stored.ID = s.nextID
	stored.Status = models.StatusPending
	stored.Deleted = false
	stored.DeleteReason = nil
	stored.DeletedAt = nil
	stored.CreatedAt = s.timestamp(ctx)
	s.records[stored.ID] = stored
	return clone(stored), nil
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(rec), nil
}

func (s *InMemory) ListApproved(_ context.Context) ([]*models.Submission, error) {
	return s.list(func(r *models.Submission) bool { return r.IsPublic() }), nil
}

func (s *InMemory) ListPending(_ context.Context) ([]*models.Submission, error) {
	return s.list(func(r *models.Submission) bool { return r.IsPending() }), nil
}

func (s *InMemory) CountApprovedByOwner(_ context.Context, owner string) (int, error) {
	return len(s.list(func(r *models.Submission) bool { return r.IsPublic() && r.OwnerID == owner })), nil
}

func (s *InMemory) TransitionStatus(_ context.Context, id int64, from, to models.Status) error {
	if !from.CanTransitionTo(to) {
		return dErrors.New(dErrors.CodeInvariantViolation, "status transition "+string(from)+" -> "+string(to)+" is not allowed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.CanTransition(from, to) != nil {
		return sentinel.ErrConflict
	}
	rec.Status = to
	return nil
}

func (s *InMemory) SoftDelete(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.CanSoftDelete() != nil {
		return sentinel.ErrConflict
	}
	rec.ApplySoftDelete(reason, s.timestamp(ctx))
	return nil
}

// timestamp prefers the time pinned on the request over the store clock.
func (s *InMemory) timestamp(ctx context.Context) time.Time {
	if t, ok := requestcontext.TimeFrom(ctx); ok {
		return t
	}
	return s.now()
}

// list returns matching records newest first, ties broken by descending ID.
func (s *InMemory) list(match func(*models.Submission) bool) []*models.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Submission, 0)
	for _, rec := range s.records {
		if match(rec) {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func clone(s *models.Submission) *models.Submission {
	c := *s
	if s.Location != nil {
		loc := *s.Location
		c.Location = &loc
	}
	c.Date.Year = copyPtr(s.Date.Year)
	c.Date.Month = copyPtr(s.Date.Month)
	c.Date.Day = copyPtr(s.Date.Day)
	c.Photographer = copyPtr(s.Photographer)
	c.Notes = copyPtr(s.Notes)
	c.PhotoURL = copyPtr(s.PhotoURL)
	c.DeleteReason = copyPtr(s.DeleteReason)
	c.DeletedAt = copyPtr(s.DeletedAt)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func validateInsert(sub *models.Submission) error {
	if sub == nil {
		return dErrors.New(dErrors.CodeValidation, "submission is required")
	}
	if sub.Caption == "" || sub.Source == "" {
		return dErrors.New(dErrors.CodeValidation, "caption and source are required")
	}
	return nil
}
