// Package identity is the authentication boundary: it verifies bearer tokens
// and produces immutable Identity values that the rest of the service trusts.
package identity

import (
	"context"

	dErrors "openmediamap/pkg/domain-errors"
)

// Identity is a verified caller. Fields are unexported so an Identity can only
// be produced by this package; request input and profile data never flow into
// the admin capability.
type Identity struct {
	subject  string
	username string
	admin    bool
}

// Trusted builds an Identity from already-verified attributes. Only
// authentication boundaries and tests should call it.
func Trusted(subject, username string, admin bool) Identity {
	return Identity{subject: subject, username: username, admin: admin}
}

// Subject is the identity provider's stable user id.
func (i Identity) Subject() string { return i.subject }

// Username is the profile username, empty when the user has no profile.
func (i Identity) Username() string { return i.username }

// IsAdmin reports whether the verified token carried admin=true.
func (i Identity) IsAdmin() bool { return i.admin }

// IsAuthenticated reports whether the identity came from a verified token.
func (i Identity) IsAuthenticated() bool { return i.subject != "" }

// Owner is the value recorded as a submission's owner: the username when
// known, otherwise the subject.
func (i Identity) Owner() string {
	if i.username != "" {
		return i.username
	}
	return i.subject
}

// RequireAdmin returns a forbidden error unless the caller is an admin with a
// username to attribute audit entries to.
func (i Identity) RequireAdmin() error {
	if !i.IsAuthenticated() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !i.admin {
		return dErrors.New(dErrors.CodeForbidden, "admin access required")
	}
	if i.username == "" {
		return dErrors.New(dErrors.CodeForbidden, "admin account has no username")
	}
	return nil
}

type contextKey struct{}

// WithIdentity attaches a verified identity to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.IsAuthenticated()
}
