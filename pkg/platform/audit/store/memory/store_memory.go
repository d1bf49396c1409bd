package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	audit "openmediamap/pkg/platform/audit"
)

// InMemoryStore keeps admin actions in insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	actions []audit.AdminAction
	now     func() time.Time
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Append(_ context.Context, adminUsername string, action audit.ActionType, recordID int64) (*audit.AdminAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry := audit.AdminAction{
		ID:            s.nextID,
		AdminUsername: adminUsername,
		ActionType:    action,
		RecordID:      recordID,
		CreatedAt:     s.now(),
	}
	s.actions = append(s.actions, entry)
	out := entry
	return &out, nil
}

// Recent returns the newest entries first. Entries with equal timestamps fall
// back to descending ID so the order is deterministic.
func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]*audit.AdminAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*audit.AdminAction, 0, len(s.actions))
	for i := range s.actions {
		entry := s.actions[i]
		all = append(all, &entry)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	limit = audit.ClampLimit(limit)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ForRecord returns every entry for one submission in insertion order.
func (s *InMemoryStore) ForRecord(_ context.Context, recordID int64) []audit.AdminAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.AdminAction
	for _, a := range s.actions {
		if a.RecordID == recordID {
			out = append(out, a)
		}
	}
	return out
}
