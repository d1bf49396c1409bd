package testutil

import (
	"net/http"

	"openmediamap/internal/identity"
)

// Contributor returns a non-admin identity with a username.
func Contributor(username string) identity.Identity {
	return identity.Trusted("uid-"+username, username, false)
}

// Admin returns an identity carrying the admin capability.
func Admin(username string) identity.Identity {
	return identity.Trusted("uid-"+username, username, true)
}

// WithIdentity attaches who to the request context, as the auth middleware
// does for a verified bearer token.
func WithIdentity(req *http.Request, who identity.Identity) *http.Request {
	return req.WithContext(identity.WithIdentity(req.Context(), who))
}
