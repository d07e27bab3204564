// Package service resolves and manages organization API keys.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"deeptrack/internal/apikeys/models"
	"deeptrack/internal/apikeys/store"
	"deeptrack/internal/backend"
	dErrors "deeptrack/pkg/domain-errors"
	audit "deeptrack/pkg/platform/audit"
)

// ErrNoActiveCredential means the user's organization has no usable key.
// Callers send the user to the key management screen instead of retrying.
var ErrNoActiveCredential = dErrors.New(dErrors.CodeMissingCredential, "DeepTrack API key not found. Please create one first.")

type Backend interface {
	Do(ctx context.Context, req backend.Request, out any) error
}

// Directory resolves the company a user belongs to.
type Directory interface {
	CompanyID(ctx context.Context, userID string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	backend        Backend
	directory      Directory
	cache          store.Cache
	cacheTTL       time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCache enables per-company caching of key lists for ttl.
func WithCache(c store.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(b Backend, directory Directory, opts ...Option) *Service {
	s := &Service{backend: b, directory: directory, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the keys of the user's company. Lists are cached per company
// so a create or revoke by one member is seen by every other member.
func (s *Service) List(ctx context.Context, userID string) ([]models.APIKey, error) {
	companyID, err := s.directory.CompanyID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		keys, ok, err := s.cache.Get(ctx, companyID)
		if err != nil {
			s.logger.WarnContext(ctx, "api key cache read failed", "company_id", companyID, "error", err)
		} else if ok {
			return keys, nil
		}
	}

	var keys []models.APIKey
	err = s.backend.Do(ctx, backend.Request{
		Operation: "apikeys.list",
		Method:    http.MethodGet,
		Path:      "/v1/users/api-keys/" + url.PathEscape(userID) + "/" + url.PathEscape(companyID),
	}, &keys)
	if err != nil {
		return nil, backend.ToDomain(err, "Failed to fetch API keys")
	}
	if keys == nil {
		keys = []models.APIKey{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, companyID, keys, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "api key cache write failed", "company_id", companyID, "error", err)
		}
	}
	return keys, nil
}

// ActiveKey resolves the credential used for verification and screening
// calls. A user without a company, or whose company has no active key, gets
// ErrNoActiveCredential.
func (s *Service) ActiveKey(ctx context.Context, userID string) (string, error) {
	keys, err := s.List(ctx, userID)
	if dErrors.HasCode(err, dErrors.CodePreconditionFailed) {
		return "", ErrNoActiveCredential
	}
	if err != nil {
		return "", err
	}
	key, ok := models.FirstActive(keys)
	if !ok {
		return "", ErrNoActiveCredential
	}
	return key.Key, nil
}

// Create mints a new key for the user's company. The returned key carries the
// full secret; it is never shown again.
func (s *Service) Create(ctx context.Context, userID, name string) (*models.APIKey, error) {
	companyID, err := s.directory.CompanyID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var key models.APIKey
	err = s.backend.Do(ctx, backend.Request{
		Operation: "apikeys.create",
		Method:    http.MethodPost,
		Path:      "/v1/users/api-keys/create",
		Body: map[string]string{
			"userId":    userID,
			"companyId": companyID,
			"name":      name,
		},
	}, &key)
	if err != nil {
		return nil, backend.ToDomain(err, "Failed to create API key")
	}

	s.invalidate(ctx, companyID)
	s.logger.InfoContext(ctx, "api key created",
		"user_id", userID,
		"company_id", companyID,
		"key_id", key.ID,
	)
	s.emit(ctx, audit.EventAPIKeyCreated, userID, key.ID)
	return &key, nil
}

// Revoke suspends keyID.
func (s *Service) Revoke(ctx context.Context, userID, keyID string) error {
	companyID, err := s.directory.CompanyID(ctx, userID)
	if err != nil {
		return err
	}

	err = s.backend.Do(ctx, backend.Request{
		Operation: "apikeys.revoke",
		Method:    http.MethodPatch,
		Path:      "/v1/users/api-keys/" + url.PathEscape(keyID) + "/revoke",
		Body: map[string]string{
			"userId":    userID,
			"companyId": companyID,
		},
	}, nil)
	if err != nil {
		return backend.ToDomain(err, "Failed to revoke API key")
	}

	s.invalidate(ctx, companyID)
	s.logger.InfoContext(ctx, "api key revoked",
		"user_id", userID,
		"company_id", companyID,
		"key_id", keyID,
	)
	s.emit(ctx, audit.EventAPIKeyRevoked, userID, keyID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, companyID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, companyID); err != nil {
		s.logger.ErrorContext(ctx, "api key cache invalidation failed", "company_id", companyID, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, userID, keyID string) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.NewEvent(ctx, action, userID)
	event.Subject = keyID
	event.Outcome = "success"
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(action), "error", err)
	}
}
