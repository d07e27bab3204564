package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"deeptrack/internal/aml/models"
	dErrors "deeptrack/pkg/domain-errors"
	"deeptrack/pkg/platform/httputil"
	"deeptrack/pkg/requestcontext"
)

// CredentialsPath is where the UI sends users without an active API key.
const CredentialsPath = "/api-keys"

type Service interface {
	Check(ctx context.Context, userID string, q *models.Query) (*models.Report, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/aml/checks", h.HandleCheck)
}

// HandleCheck screens a person or company and returns the shaped report.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	q, ok := httputil.DecodeAndPrepare[models.Query](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.Check(ctx, userID, q)
	if err != nil {
		attrs := []any{
			"request_id", requestID,
			"user_id", userID,
			"check_type", string(q.CheckType),
			"error", err,
		}
		code := dErrors.CodeOf(err)
		if httputil.StatusFor(code) >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "aml check failed", attrs...)
		} else {
			h.logger.InfoContext(ctx, "aml check failed", attrs...)
		}
		if code == dErrors.CodeMissingCredential {
			httputil.WriteErrorWith(w, err, map[string]string{"redirect_to": CredentialsPath})
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
