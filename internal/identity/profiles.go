package identity

import (
	"context"
	"sync"
	"time"

	"openmediamap/pkg/platform/sentinel"
)

// Profile is a user's public profile. Role is informational only; admin
// capability comes exclusively from the verified token.
type Profile struct {
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Bio       *string   `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileDirectory resolves profiles by identity-provider id or username.
// Implementations return sentinel.ErrNotFound for unknown users.
type ProfileDirectory interface {
	ByUID(ctx context.Context, uid string) (*Profile, error)
	ByUsername(ctx context.Context, username string) (*Profile, error)
}

// InMemoryProfiles is a ProfileDirectory for local development and tests.
type InMemoryProfiles struct {
	mu         sync.RWMutex
	byUID      map[string]*Profile
	byUsername map[string]*Profile
}

func NewInMemoryProfiles(profiles ...Profile) *InMemoryProfiles {
	d := &InMemoryProfiles{
		byUID:      make(map[string]*Profile),
		byUsername: make(map[string]*Profile),
	}
	for _, p := range profiles {
		d.Put(p)
	}
	return d
}

// Put adds or replaces a profile.
func (d *InMemoryProfiles) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.byUID[p.UID]; ok {
		delete(d.byUsername, old.Username)
	}
	stored := p
	d.byUID[p.UID] = &stored
	d.byUsername[p.Username] = &stored
}

func (d *InMemoryProfiles) ByUID(_ context.Context, uid string) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byUID[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (d *InMemoryProfiles) ByUsername(_ context.Context, username string) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byUsername[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *p
	return &out, nil
}
