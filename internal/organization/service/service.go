// Package service proxies user, company and member management to the backend.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"deeptrack/internal/backend"
	"deeptrack/internal/organization/models"
	dErrors "deeptrack/pkg/domain-errors"
	audit "deeptrack/pkg/platform/audit"
)

// Backend is the subset of the backend client the service needs.
type Backend interface {
	Do(ctx context.Context, req backend.Request, out any) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ErrNoCompany is returned when a registered user has not joined a company.
var ErrNoCompany = dErrors.New(dErrors.CodePreconditionFailed, "No Company Id")

type Service struct {
	backend        Backend
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

func New(b Backend, opts ...Option) *Service {
	s := &Service{backend: b, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindUser looks up the backend user for an identity-provider subject.
func (s *Service) FindUser(ctx context.Context, userID string) (*models.User, error) {
	var env backend.Envelope[models.User]
	err := s.backend.Do(ctx, backend.Request{
		Operation: "users.find",
		Method:    http.MethodGet,
		Path:      "/v1/users/find-by-clerk/" + url.PathEscape(userID),
	}, &env)
	if err != nil {
		return nil, backend.ToDomain(err, "user not found")
	}
	if env.Data == nil || !env.Status.OK() {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return env.Data, nil
}

// CompanyID resolves the company a user belongs to.
func (s *Service) CompanyID(ctx context.Context, userID string) (string, error) {
	user, err := s.FindUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Company() == "" {
		return "", ErrNoCompany
	}
	return user.Company(), nil
}

// AddUser registers the signed-in subject with the backend.
func (s *Service) AddUser(ctx context.Context, userID string, in models.NewUser) (*models.User, error) {
	body := map[string]any{
		"userId":   userID,
		"email":    in.Email,
		"role":     in.Role,
		"fullName": in.FullName,
	}
	if in.CompanyID != "" {
		body["companyId"] = in.CompanyID
	}
	var env backend.Envelope[models.User]
	err := s.backend.Do(ctx, backend.Request{
		Operation: "users.add",
		Method:    http.MethodPost,
		Path:      "/v1/users/add",
		Body:      body,
	}, &env)
	if err != nil {
		return nil, backend.ToDomain(err, "Failed to add user")
	}
	if env.Data == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "Failed to add user")
	}
	s.logger.InfoContext(ctx, "user onboarded", "user_id", userID, "role", string(in.Role))
	s.emit(ctx, audit.EventUserOnboarded, userID, env.Data.ID)
	return env.Data, nil
}

// CreateCompany registers a company headed by userID.
func (s *Service) CreateCompany(ctx context.Context, userID string, in models.NewCompany) (*models.Company, error) {
	var company models.Company
	err := s.backend.Do(ctx, backend.Request{
		Operation: "companies.create",
		Method:    http.MethodPost,
		Path:      "/v1/companies",
		Body: map[string]any{
			"name":          in.Name,
			"email":         in.Email,
			"phone":         in.Phone,
			"companyHeadId": userID,
			"companyDomain": in.CompanyDomain,
		},
	}, &company)
	if err != nil {
		return nil, backend.ToDomain(err, "Failed to create company")
	}
	s.logger.InfoContext(ctx, "company created",
		"user_id", userID,
		"company_id", company.ID,
		"company_domain", string(in.CompanyDomain),
	)
	s.emit(ctx, audit.EventOrganizationCreated, userID, company.ID)
	return &company, nil
}

// HasCompany reports whether userID belongs to any company.
func (s *Service) HasCompany(ctx context.Context, userID string) (bool, error) {
	var resp struct {
		Company bool `json:"company"`
	}
	err := s.backend.Do(ctx, backend.Request{
		Operation: "companies.find",
		Method:    http.MethodGet,
		Path:      "/v1/companies/find-company/" + url.PathEscape(userID),
	}, &resp)
	if err != nil {
		return false, backend.ToDomain(err, "Failed to fetch company")
	}
	return resp.Company, nil
}

// CompanyByHead returns the company userID heads.
func (s *Service) CompanyByHead(ctx context.Context, userID string) (*models.Company, error) {
	var company models.Company
	err := s.backend.Do(ctx, backend.Request{
		Operation: "companies.by_head",
		Method:    http.MethodGet,
		Path:      "/v1/companies/by-head/" + url.PathEscape(userID),
	}, &company)
	if err != nil {
		return nil, backend.ToDomain(err, "Something went wrong. Try Again")
	}
	return &company, nil
}

func (s *Service) IsCompanyHead(ctx context.Context, userID string) (bool, error) {
	var resp struct {
		Head bool `json:"head"`
	}
	err := s.backend.Do(ctx, backend.Request{
		Operation: "companies.check_head",
		Method:    http.MethodGet,
		Path:      "/v1/companies/check-head/" + url.PathEscape(userID),
	}, &resp)
	if err != nil {
		return false, backend.ToDomain(err, "Failed to check company head")
	}
	return resp.Head, nil
}

// Members lists the members of userID's company.
func (s *Service) Members(ctx context.Context, userID string) ([]models.Member, error) {
	var members []models.Member
	err := s.backend.Do(ctx, backend.Request{
		Operation: "users.company_members",
		Method:    http.MethodGet,
		Path:      "/v1/users/company-members/" + url.PathEscape(userID),
	}, &members)
	if err != nil {
		return nil, backend.ToDomain(err, "Failed to fetch company members")
	}
	if members == nil {
		members = []models.Member{}
	}
	return members, nil
}

// Onboarding decides where a signed-in user goes next: registration, company
// creation, or the dashboard.
func (s *Service) Onboarding(ctx context.Context, userID string) (*models.Onboarding, error) {
	user, err := s.FindUser(ctx, userID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return &models.Onboarding{Next: models.NextRegisterUser}, nil
	}
	if err != nil {
		return nil, err
	}

	out := &models.Onboarding{User: user}
	isHead, err := s.IsCompanyHead(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.IsHead = isHead

	if user.Company() != "" {
		out.HasCompany = true
	} else {
		has, err := s.HasCompany(ctx, userID)
		if err != nil {
			return nil, err
		}
		out.HasCompany = has
	}

	if out.HasCompany {
		out.Next = models.NextDashboard
	} else {
		out.Next = models.NextCreateCompany
	}
	return out, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, userID, subject string) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.NewEvent(ctx, action, userID)
	event.Subject = subject
	event.Outcome = "success"
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(action), "error", err)
	}
}
