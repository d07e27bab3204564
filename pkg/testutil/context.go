package testutil

import (
	"net/http"

	"deeptrack/pkg/requestcontext"
)

// WithUserID simulates the auth middleware for an authenticated request.
// Empty ids are ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	if userID == "" {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}
