// Package jwttoken verifies session tokens minted by the external identity
// provider. The console never issues tokens itself.
package jwttoken

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	dErrors "deeptrack/pkg/domain-errors"
	authmw "deeptrack/pkg/platform/middleware/auth"
)

// Claims are the identity-provider session claims the console relies on.
type Claims struct {
	SessionID string `json:"sid"`
	OrgID     string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates provider tokens signed either with an RSA key (the
// provider's production setup) or a shared HMAC secret (local development).
type Verifier struct {
	keyFunc jwt.Keyfunc
	opts    []jwt.ParserOption
}

// NewVerifier builds a verifier. publicKeyPEM takes precedence over hmacSecret.
func NewVerifier(publicKeyPEM, hmacSecret, issuer string) (*Verifier, error) {
	v := &Verifier{}
	switch {
	case publicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse identity provider public key: %w", err)
		}
		v.keyFunc = func(*jwt.Token) (any, error) { return key, nil }
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	case hmacSecret != "":
		secret := []byte(hmacSecret)
		v.keyFunc = func(*jwt.Token) (any, error) { return secret, nil }
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"HS256"}))
	default:
		return nil, errors.New("identity provider key or secret is required")
	}
	if issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(issuer))
	}
	v.opts = append(v.opts, jwt.WithExpirationRequired())
	return v, nil
}

// ValidateToken implements authmw.JWTValidator.
func (v *Verifier) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, v.opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &authmw.JWTClaims{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
	}, nil
}
