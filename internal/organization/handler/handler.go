package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"deeptrack/internal/organization/models"
	dErrors "deeptrack/pkg/domain-errors"
	"deeptrack/pkg/platform/httputil"
	"deeptrack/pkg/requestcontext"
)

type Service interface {
	Onboarding(ctx context.Context, userID string) (*models.Onboarding, error)
	AddUser(ctx context.Context, userID string, in models.NewUser) (*models.User, error)
	CreateCompany(ctx context.Context, userID string, in models.NewCompany) (*models.Company, error)
	HasCompany(ctx context.Context, userID string) (bool, error)
	CompanyByHead(ctx context.Context, userID string) (*models.Company, error)
	Members(ctx context.Context, userID string) ([]models.Member, error)
}

// Handler serves onboarding, company and member endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/onboarding", h.HandleOnboarding)
	r.Post("/users", h.HandleAddUser)
	r.Post("/companies", h.HandleCreateCompany)
	r.Get("/companies/mine", h.HandleMyCompany)
	r.Get("/members", h.HandleMembers)
}

func (h *Handler) HandleOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	out, err := h.service.Onboarding(ctx, userID)
	if err != nil {
		h.fail(w, ctx, "onboarding lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddUserRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	user, err := h.service.AddUser(ctx, userID, req.parsed)
	if err != nil {
		h.fail(w, ctx, "add user failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) HandleCreateCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateCompanyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	has, err := h.service.HasCompany(ctx, userID)
	if err != nil {
		h.fail(w, ctx, "company lookup failed", err)
		return
	}
	if has {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "user already belongs to a company"))
		return
	}
	company, err := h.service.CreateCompany(ctx, userID, req.parsed)
	if err != nil {
		h.fail(w, ctx, "create company failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"data":    company,
		"message": "Company Created Successfully",
	})
}

func (h *Handler) HandleMyCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	company, err := h.service.CompanyByHead(ctx, userID)
	if err != nil {
		h.fail(w, ctx, "company lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, company)
}

func (h *Handler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	members, err := h.service.Members(ctx, userID)
	if err != nil {
		h.fail(w, ctx, "members lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (string, bool) {
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return userID, true
}

func (h *Handler) fail(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
