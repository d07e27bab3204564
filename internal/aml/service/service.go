// Package service runs AML sanctions and PEP screening against the backend
// and shapes the payload into a report.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"deeptrack/internal/aml/models"
	"deeptrack/internal/backend"
	audit "deeptrack/pkg/platform/audit"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CredentialResolver,AuditPublisher

type Backend interface {
	Do(ctx context.Context, req backend.Request, out any) error
}

// CredentialResolver yields the organization API key sent with each check.
type CredentialResolver interface {
	ActiveKey(ctx context.Context, userID string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const checkFailedMessage = "Failed to complete check. Please try again."

type Service struct {
	backend        Backend
	credentials    CredentialResolver
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(b Backend, credentials CredentialResolver, opts ...Option) *Service {
	s := &Service{backend: b, credentials: credentials, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check screens q on behalf of userID. q must already be validated.
func (s *Service) Check(ctx context.Context, userID string, q *models.Query) (*models.Report, error) {
	apiKey, err := s.credentials.ActiveKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	var resp models.Response
	err = s.backend.Do(ctx, backend.Request{
		Operation: "aml.check",
		Method:    http.MethodGet,
		Path:      "/aml/check-sanctions",
		Query:     q.Values(),
		APIKey:    apiKey,
	}, &resp)
	if err != nil {
		s.emit(ctx, userID, q, "failure", string(backend.GetCategory(err)))
		return nil, backend.ToDomain(err, checkFailedMessage)
	}

	report := Assess(&resp, q)
	s.logger.InfoContext(ctx, "aml check completed",
		"user_id", userID,
		"check_type", string(q.CheckType),
		"risk_level", string(report.RiskLevel),
		"matched", resp.MatchedEntity != nil,
	)
	s.emit(ctx, userID, q, strings.ToLower(string(report.RiskLevel)), "")
	return report, nil
}

func (s *Service) emit(ctx context.Context, userID string, q *models.Query, outcome, reason string) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.NewEvent(ctx, audit.EventAMLCheckPerformed, userID)
	event.Subject = string(q.CheckType)
	event.Outcome = outcome
	event.Reason = reason
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(audit.EventAMLCheckPerformed), "error", err)
	}
}
