package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"deeptrack/internal/verification"
	"deeptrack/internal/wizard/models"
	"deeptrack/internal/wizard/notify"
	"deeptrack/internal/wizard/upload"
	dErrors "deeptrack/pkg/domain-errors"
	"deeptrack/pkg/platform/httputil"
	"deeptrack/pkg/requestcontext"
)

// CredentialsPath is where the UI sends users without an active API key.
const CredentialsPath = "/api-keys"

// multipartOverhead covers form fields and boundaries around the image.
const multipartOverhead = 1 << 20

type Service interface {
	Create(ctx context.Context, userID string) (models.View, error)
	Get(ctx context.Context, userID, sessionID string) (models.View, error)
	List(ctx context.Context, userID string) ([]models.View, error)
	Discard(ctx context.Context, userID, sessionID string) error
	SelectDocument(ctx context.Context, userID, sessionID, documentType string) (models.View, error)
	Advance(ctx context.Context, userID, sessionID string) (models.View, error)
	Retreat(ctx context.Context, userID, sessionID string) (models.View, error)
	Upload(ctx context.Context, userID, sessionID, slot string, file upload.File) (upload.SlotState, error)
	Cancel(ctx context.Context, userID, sessionID, slot string) (upload.SlotState, error)
	Retry(ctx context.Context, userID, sessionID, slot string) (upload.SlotState, error)
	Remove(ctx context.Context, userID, sessionID, slot string, confirmed bool) (upload.SlotState, error)
	Result(ctx context.Context, userID, sessionID string) (verification.Summary, error)
	Notifications(ctx context.Context, userID, sessionID string) ([]notify.Notification, error)
}

type Handler struct {
	service        Service
	logger         *slog.Logger
	maxUploadBytes int64
}

type Option func(*Handler)

func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger, maxUploadBytes: upload.DefaultMaxBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/verifications", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleDiscard)
			r.Put("/document", h.HandleSelectDocument)
			r.Post("/advance", h.HandleAdvance)
			r.Post("/retreat", h.HandleRetreat)
			r.Get("/result", h.HandleResult)
			r.Get("/notifications", h.HandleNotifications)
			r.Put("/uploads/{slot}", h.HandleUpload)
			r.Post("/uploads/{slot}/cancel", h.HandleCancel)
			r.Post("/uploads/{slot}/retry", h.HandleRetry)
			r.Delete("/uploads/{slot}", h.HandleRemove)
		})
	})
}

// SelectDocumentRequest is the body for PUT /verifications/{id}/document.
type SelectDocumentRequest struct {
	DocumentType string `json:"document_type"`
}

func (r *SelectDocumentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.DocumentType = strings.TrimSpace(r.DocumentType)
	if r.DocumentType == "" {
		return dErrors.New(dErrors.CodeValidation, "document_type is required")
	}
	return nil
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	view, err := h.service.Create(ctx, userID)
	if err != nil {
		h.fail(w, ctx, "create verification session failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	views, err := h.service.List(ctx, userID)
	if err != nil {
		h.fail(w, ctx, "list verification sessions failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.session(w, r, h.service.Get)
}

func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	h.session(w, r, h.service.Advance)
}

func (h *Handler) HandleRetreat(w http.ResponseWriter, r *http.Request) {
	h.session(w, r, h.service.Retreat)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (models.View, error)) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	view, err := op(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, ctx, "verification session request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	if err := h.service.Discard(ctx, userID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, ctx, "discard verification session failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSelectDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SelectDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	view, err := h.service.SelectDocument(ctx, userID, chi.URLParam(r, "id"), req.DocumentType)
	if err != nil {
		h.fail(w, ctx, "select document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	summary, err := h.service.Result(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, ctx, "verification result failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	notifications, err := h.service.Notifications(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, ctx, "drain notifications failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

// HandleUpload accepts a multipart form with the image in the "file" field.
// The upload continues in the background; the response is the slot in the
// uploading phase.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	limit := h.maxUploadBytes + multipartOverhead
	if r.ContentLength > limit {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file is too large"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file is too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "multipart form with a file field is required"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file is required"))
		return
	}
	defer f.Close()

	state, err := h.service.Upload(ctx, userID, chi.URLParam(r, "id"), chi.URLParam(r, "slot"), upload.File{
		Name:        hdr.Filename,
		Size:        hdr.Size,
		ContentType: hdr.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		h.fail(w, ctx, "start upload failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, state)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.slot(w, r, h.service.Cancel)
}

func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	h.slot(w, r, h.service.Retry)
}

// HandleRemove requires ?confirm=true; without it the response asks the UI
// to confirm the destructive action.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	h.slot(w, r, func(ctx context.Context, userID, sessionID, slot string) (upload.SlotState, error) {
		return h.service.Remove(ctx, userID, sessionID, slot, confirmed)
	})
}

func (h *Handler) slot(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string, string) (upload.SlotState, error)) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	state, err := op(ctx, userID, chi.URLParam(r, "id"), chi.URLParam(r, "slot"))
	if err != nil {
		h.fail(w, ctx, "upload slot request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

// fail logs and writes err. A missing credential carries the path of the
// key management screen so the UI redirects instead of offering a retry.
func (h *Handler) fail(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx),
		"error", err,
	}
	switch httputil.StatusFor(code) / 100 {
	case 5:
		h.logger.ErrorContext(ctx, msg, attrs...)
	default:
		h.logger.InfoContext(ctx, msg, attrs...)
	}
	if code == dErrors.CodeMissingCredential {
		httputil.WriteErrorWith(w, err, map[string]string{"redirect_to": CredentialsPath})
		return
	}
	httputil.WriteError(w, err)
}

func requireUser(w http.ResponseWriter, ctx context.Context) (string, bool) {
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return userID, true
}
