// Package requesttime pins one "now" per request. Submission stores stamp
// created_at and deleted_at with it and the access log measures from it.
package requesttime

import (
	"net/http"
	"time"

	"openmediamap/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
