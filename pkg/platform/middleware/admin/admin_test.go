package admin

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequireAdminToken("s3cret", slog.Default())(ok)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{name: "missing token", want: http.StatusUnauthorized},
		{name: "wrong token", header: TokenHeader, value: "nope", want: http.StatusUnauthorized},
		{name: "admin header", header: TokenHeader, value: "s3cret", want: http.StatusOK},
		{name: "bearer token", header: "Authorization", value: "Bearer s3cret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()
			guarded.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}

	t.Run("empty expected token leaves endpoint open", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequireAdminToken("", slog.Default())(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
