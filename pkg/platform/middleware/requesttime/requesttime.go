// Package requesttime pins a single "now" per request so timestamps written to
// sessions and audit events within one request agree.
package requesttime

import (
	"net/http"
	"time"

	"deeptrack/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
