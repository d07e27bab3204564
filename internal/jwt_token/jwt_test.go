package jwttoken

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "deeptrack/pkg/domain-errors"
	authmw "deeptrack/pkg/platform/middleware/auth"
	"deeptrack/pkg/requestcontext"
)

const (
	testSecret = "test-signing-key"
	testIssuer = "https://idp.test"
)

func sign(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func validClaims(expiresIn time.Duration) Claims {
	return Claims{
		SessionID: "sess_123",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_2abc",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestVerifier_ValidateToken(t *testing.T) {
	v, err := NewVerifier("", testSecret, testIssuer)
	require.NoError(t, err)

	t.Run("accepts a valid provider token", func(t *testing.T) {
		claims, err := v.ValidateToken(sign(t, validClaims(time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, "user_2abc", claims.UserID)
		assert.Equal(t, "sess_123", claims.SessionID)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		_, err := v.ValidateToken(sign(t, validClaims(-time.Minute)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("rejects wrong issuer", func(t *testing.T) {
		c := validClaims(time.Hour)
		c.Issuer = "https://elsewhere.test"
		_, err := v.ValidateToken(sign(t, c))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects token without subject", func(t *testing.T) {
		c := validClaims(time.Hour)
		c.Subject = ""
		_, err := v.ValidateToken(sign(t, c))
		assert.Error(t, err)
	})
}

func TestNewVerifier_RequiresKeyMaterial(t *testing.T) {
	_, err := NewVerifier("", "", "")
	assert.Error(t, err)

	_, err = NewVerifier("not a pem", "", "")
	assert.Error(t, err)
}

func TestRequireAuthWithVerifier(t *testing.T) {
	v, err := NewVerifier("", testSecret, "")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	var seen string
	h := authmw.RequireAuth(v, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.UserID(r.Context())
	}))

	t.Run("missing header is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token populates user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+sign(t, validClaims(time.Hour)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user_2abc", seen)
	})
}
