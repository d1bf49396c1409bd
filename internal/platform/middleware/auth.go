package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"openmediamap/internal/identity"
	dErrors "openmediamap/pkg/domain-errors"
	"openmediamap/pkg/platform/httputil"
	"openmediamap/pkg/requestcontext"
)

const bearerPrefix = "Bearer "

// RequireAuth verifies the bearer token and attaches the caller's Identity to
// the request context. Requests without a valid token get 401.
func RequireAuth(auth identity.Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			who, err := auth.Authenticate(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(ctx, who)))
		})
	}
}

// RequireAdmin rejects authenticated callers without the admin capability.
// It must run after RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			who, _ := identity.FromContext(ctx)
			if err := who.RequireAdmin(); err != nil {
				logger.WarnContext(ctx, "admin access denied",
					"subject", who.Subject(),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
