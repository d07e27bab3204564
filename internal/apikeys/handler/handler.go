package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"deeptrack/internal/apikeys/models"
	dErrors "deeptrack/pkg/domain-errors"
	"deeptrack/pkg/platform/httputil"
	"deeptrack/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, userID string) ([]models.APIKey, error)
	Create(ctx context.Context, userID, name string) (*models.APIKey, error)
	Revoke(ctx context.Context, userID, keyID string) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api-keys", h.HandleList)
	r.Post("/api-keys", h.HandleCreate)
	r.Patch("/api-keys/{id}/revoke", h.HandleRevoke)
}

// CreateRequest is the body for POST /api-keys.
type CreateRequest struct {
	Name string `json:"name"`
}

func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 64 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 64 characters")
	}
	return nil
}

// HandleList returns the company's keys with secrets masked.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	keys, err := h.service.List(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list api keys failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	masked := make([]models.APIKey, len(keys))
	for i, k := range keys {
		masked[i] = k.Masked()
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"keys": masked})
}

// HandleCreate returns the new key with its full secret exactly once.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	key, err := h.service.Create(ctx, userID, req.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "create api key failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "key": key})
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	keyID := strings.TrimSpace(chi.URLParam(r, "id"))
	if keyID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "key id is required"))
		return
	}
	if err := h.service.Revoke(ctx, userID, keyID); err != nil {
		h.logger.ErrorContext(ctx, "revoke api key failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"key_id", keyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func requireUser(w http.ResponseWriter, ctx context.Context) (string, bool) {
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return userID, true
}
