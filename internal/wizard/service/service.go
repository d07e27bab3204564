// Package service orchestrates verification wizard sessions: step control,
// image uploads and the terminal verification submission.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"deeptrack/internal/verification"
	"deeptrack/internal/wizard/metrics"
	"deeptrack/internal/wizard/models"
	"deeptrack/internal/wizard/notify"
	"deeptrack/internal/wizard/upload"
	dErrors "deeptrack/pkg/domain-errors"
	audit "deeptrack/pkg/platform/audit"
	"deeptrack/pkg/platform/sentinel"
	"deeptrack/pkg/requestcontext"
)

const defaultUploadTimeout = 2 * time.Minute

// ErrSessionNotFound hides whether a session expired, never existed, or
// belongs to someone else.
var ErrSessionNotFound = dErrors.New(dErrors.CodeNotFound, "verification session not found or expired")

type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Session, error)
}

// CredentialResolver returns the organization API key for a user, or an
// error coded missing_credential when none is active.
type CredentialResolver interface {
	ActiveKey(ctx context.Context, userID string) (string, error)
}

// Verifier sends the three image locators to the verification endpoint.
type Verifier interface {
	Verify(ctx context.Context, apiKey string, images verification.Images) (*verification.Result, error)
}

// NotificationSource receives notifications and lets the UI drain them.
type NotificationSource interface {
	notify.Notifier
	Drain(sessionID string) []notify.Notification
	Forget(sessionID string)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	sessions       SessionStore
	credentials    CredentialResolver
	verifier       Verifier
	transport      upload.Transport
	notifier       notify.Notifier
	inbox          NotificationSource
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	maxUploadBytes int64
	uploadTimeout  time.Duration
	uploads        sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithInbox serves notifications from inbox. Each notification is logged and
// then delivered to it.
func WithInbox(inbox *notify.Inbox) Option {
	return func(s *Service) {
		s.inbox = inbox
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func WithUploadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.uploadTimeout = d
		}
	}
}

func New(sessions SessionStore, credentials CredentialResolver, verifier Verifier, transport upload.Transport, opts ...Option) *Service {
	s := &Service{
		sessions:       sessions,
		credentials:    credentials,
		verifier:       verifier,
		transport:      transport,
		logger:         slog.Default(),
		maxUploadBytes: upload.DefaultMaxBytes,
		uploadTimeout:  defaultUploadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.inbox == nil {
		s.inbox = notify.NewInbox(notify.DefaultInboxSize)
	}
	s.notifier = notify.WithLogging(s.inbox, s.logger)
	return s
}

// Create starts a new wizard session at the document selection step.
func (s *Service) Create(ctx context.Context, userID string) (models.View, error) {
	if userID == "" {
		return models.View{}, dErrors.New(dErrors.CodeUnauthorized, "missing user")
	}
	session := models.NewSession(userID, requestcontext.Now(ctx))
	if err := s.sessions.Save(ctx, session); err != nil {
		return models.View{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start verification")
	}
	s.metrics.IncrementSessionsCreated()
	s.logger.InfoContext(ctx, "verification session created",
		"user_id", userID,
		"session_id", session.ID(),
	)
	s.emit(ctx, session, audit.EventWizardStarted, "", "success", "")
	return session.View(), nil
}

// Get returns the live view of a session owned by userID.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (models.View, error) {
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return models.View{}, err
	}
	return session.View(), nil
}

// List returns the user's live sessions.
func (s *Service) List(ctx context.Context, userID string) ([]models.View, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification sessions")
	}
	views := make([]models.View, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, session.View())
	}
	return views, nil
}

// Discard destroys the session and aborts its in-flight uploads. Remote files
// already stored are left in place.
func (s *Service) Discard(ctx context.Context, userID, sessionID string) error {
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, session.ID()); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to discard verification session")
	}
	s.release(session)
	s.logger.InfoContext(ctx, "verification session discarded",
		"user_id", userID,
		"session_id", session.ID(),
	)
	return nil
}

// Evicted cleans up after a session the store expired.
func (s *Service) Evicted(session *models.Session) {
	s.release(session)
	s.logger.Info("verification session expired",
		"user_id", session.UserID(),
		"session_id", session.ID(),
	)
}

func (s *Service) release(session *models.Session) {
	session.Uploads().AbortAll()
	s.inbox.Forget(session.ID())
	s.metrics.DecrementSessionsActive()
}

// SelectDocument records the document type the user verifies with.
func (s *Service) SelectDocument(ctx context.Context, userID, sessionID, documentType string) (models.View, error) {
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return models.View{}, err
	}
	dt, err := models.ParseDocumentType(documentType)
	if err != nil {
		return models.View{}, err
	}
	if err := session.SelectDocument(dt); err != nil {
		return session.View(), err
	}
	s.emit(ctx, session, audit.EventDocumentSelected, string(dt), "success", "")
	return session.View(), nil
}

// Advance moves the wizard forward. At the verify step it submits the
// verification instead; a rejected precondition leaves the step unchanged.
func (s *Service) Advance(ctx context.Context, userID, sessionID string) (models.View, error) {
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return models.View{}, err
	}
	if session.Step() == models.StepVerify {
		err = s.submit(ctx, session)
		return session.View(), err
	}

	from := session.Step()
	step, err := session.ApplyAdvance()
	if err != nil {
		s.rejectAdvance(ctx, session, from, err)
		return session.View(), err
	}
	s.logger.InfoContext(ctx, "wizard advanced",
		"session_id", session.ID(),
		"step", int(step),
	)
	return session.View(), nil
}

func (s *Service) rejectAdvance(ctx context.Context, session *models.Session, step models.Step, err error) {
	if dErrors.HasCode(err, dErrors.CodePreconditionFailed) {
		s.metrics.IncrementAdvanceRejected(stepLabel(step))
		s.notifier.NotifyError(ctx, session.ID(), userMessage(err))
	}
}

// Retreat steps the wizard back; it is a no-op while a submission is in flight.
func (s *Service) Retreat(ctx context.Context, userID, sessionID string) (models.View, error) {
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return models.View{}, err
	}
	if _, err := session.Retreat(); err != nil {
		return session.View(), err
	}
	return session.View(), nil
}

// submit performs the single verification call for a session at the verify
// step. Credential resolution happens before the session is marked in
// flight; any failure leaves the session at the verify step with its uploads.
func (s *Service) submit(ctx context.Context, session *models.Session) error {
	images, err := session.BeginSubmission()
	if err != nil {
		s.rejectAdvance(ctx, session, models.StepVerify, err)
		return err
	}

	apiKey, err := s.credentials.ActiveKey(ctx, session.UserID())
	if err != nil {
		session.AbortSubmission()
		s.metrics.ObserveSubmission(outcomeFor(err), time.Now())
		if !dErrors.HasCode(err, dErrors.CodeMissingCredential) {
			s.logger.ErrorContext(ctx, "credential lookup failed",
				"session_id", session.ID(),
				"user_id", session.UserID(),
				"error", err,
			)
		}
		s.notifier.NotifyError(ctx, session.ID(), userMessage(err))
		return err
	}

	session.MarkInFlight()
	s.emit(ctx, session, audit.EventVerificationSubmitted, "", "", "")
	start := time.Now()

	result, err := s.verifier.Verify(ctx, apiKey, images)
	if err != nil {
		session.AbortSubmission()
		outcome := outcomeFor(err)
		s.metrics.ObserveSubmission(outcome, start)
		s.logger.WarnContext(ctx, "verification failed",
			"session_id", session.ID(),
			"user_id", session.UserID(),
			"outcome", outcome,
			"error", err,
		)
		s.notifier.NotifyError(ctx, session.ID(), userMessage(err))
		s.emit(ctx, session, audit.EventVerificationFailed, "", outcome, userMessage(err))
		return err
	}

	session.FinishSubmission(result)
	s.metrics.ObserveSubmission("success", start)
	s.logger.InfoContext(ctx, "verification completed",
		"session_id", session.ID(),
		"user_id", session.UserID(),
		"successful", result.Successful(),
	)
	s.notifier.NotifySuccess(ctx, session.ID(), "Verification completed successfully")
	outcome := "failed_checks"
	if result.Successful() {
		outcome = "verified"
	}
	s.emit(ctx, session, audit.EventVerificationSucceeded, "", outcome, "")
	return nil
}

// Result renders the verification result of a completed session.
func (s *Service) Result(ctx context.Context, userID, sessionID string) (verification.Summary, error) {
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return verification.Summary{}, err
	}
	result := session.Result()
	if result == nil {
		return verification.Summary{}, dErrors.New(dErrors.CodeInvalidState, "verification has not completed")
	}
	return verification.Summarize(result, string(session.DocumentType())), nil
}

// Notifications drains the session's pending notifications.
func (s *Service) Notifications(ctx context.Context, userID, sessionID string) ([]notify.Notification, error) {
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.inbox.Drain(session.ID()), nil
}

// Upload validates the image, starts the transport in the background and
// returns the slot in the uploading phase. Progress and the terminal outcome
// are observed through the session view.
func (s *Service) Upload(ctx context.Context, userID, sessionID, slotName string, file upload.File) (upload.SlotState, error) {
	session, slot, err := s.slot(ctx, userID, sessionID, slotName)
	if err != nil {
		return upload.SlotState{}, err
	}
	if err := session.GuardUploads(); err != nil {
		return upload.SlotState{}, err
	}
	if err := upload.ValidateFile(file, s.maxUploadBytes); err != nil {
		return upload.SlotState{}, err
	}

	// The request body is gone once the handler returns.
	data, err := io.ReadAll(io.LimitReader(file.Body, s.maxUploadBytes+1))
	if err != nil {
		return upload.SlotState{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read image")
	}
	if int64(len(data)) > s.maxUploadBytes {
		return upload.SlotState{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("file exceeds the %d MB limit", s.maxUploadBytes>>20))
	}
	file.Size = int64(len(data))
	file.Body = bytes.NewReader(data)

	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.uploadTimeout)
	tracker := session.Uploads()
	var attempt uint64
	err = session.ChangeUploads(func(t *upload.Tracker) error {
		var err error
		attempt, err = t.Start(slot, file.Info(), cancel)
		return err
	})
	if err != nil {
		cancel()
		return tracker.State(slot), err
	}

	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		defer cancel()
		s.runUpload(uploadCtx, session, slot, attempt, file)
	}()
	return tracker.State(slot), nil
}

func (s *Service) runUpload(ctx context.Context, session *models.Session, slot upload.Slot, attempt uint64, file upload.File) {
	tracker := session.Uploads()
	target := upload.Target{SessionID: session.ID(), Slot: slot}

	out, err := s.transport.Upload(ctx, target, file, func(p int) {
		_ = tracker.Progress(slot, attempt, p)
	})
	// Outcome reporting must survive the upload deadline.
	ctx = requestcontext.WithTime(context.WithoutCancel(ctx), time.Now())
	if err == nil {
		err = tracker.Complete(slot, attempt, out.URL, out.Info())
		if err == nil {
			s.metrics.IncrementUpload(string(slot), "uploaded")
			s.logger.InfoContext(ctx, "image uploaded",
				"session_id", session.ID(),
				"slot", string(slot),
				"size", out.Size,
			)
			s.emit(ctx, session, audit.EventUploadCompleted, string(slot), "success", "")
			return
		}
		if errors.Is(err, upload.ErrStaleAttempt) {
			return
		}
	} else if ferr := tracker.Fail(slot, attempt, slot.Label()+" upload failed"); errors.Is(ferr, upload.ErrStaleAttempt) {
		return
	}

	s.metrics.IncrementUpload(string(slot), "failed")
	s.logger.WarnContext(ctx, "image upload failed",
		"session_id", session.ID(),
		"slot", string(slot),
		"error", err,
	)
	s.notifier.NotifyError(ctx, session.ID(), slot.Label()+" upload failed. Cancel or retry to upload again.")
	s.emit(ctx, session, audit.EventUploadFailed, string(slot), "failure", err.Error())
}

// Wait blocks until background uploads finish.
func (s *Service) Wait() {
	s.uploads.Wait()
}

// Cancel aborts an upload or clears a failed slot.
func (s *Service) Cancel(ctx context.Context, userID, sessionID, slotName string) (upload.SlotState, error) {
	session, slot, err := s.slot(ctx, userID, sessionID, slotName)
	if err != nil {
		return upload.SlotState{}, err
	}
	tracker := session.Uploads()
	var before upload.Phase
	err = session.ChangeUploads(func(t *upload.Tracker) error {
		before = t.State(slot).Phase
		return t.Cancel(slot)
	})
	if err != nil {
		return tracker.State(slot), err
	}
	if before != upload.PhaseIdle {
		s.metrics.IncrementUpload(string(slot), "cancelled")
		s.notifier.NotifyError(ctx, session.ID(), slot.Label()+" upload canceled")
	}
	return tracker.State(slot), nil
}

// Retry clears a failed slot so the user can select the file again. The
// previous file is never resent.
func (s *Service) Retry(ctx context.Context, userID, sessionID, slotName string) (upload.SlotState, error) {
	session, slot, err := s.slot(ctx, userID, sessionID, slotName)
	if err != nil {
		return upload.SlotState{}, err
	}
	tracker := session.Uploads()
	if err := session.ChangeUploads(func(t *upload.Tracker) error { return t.Retry(slot) }); err != nil {
		return tracker.State(slot), err
	}
	s.notifier.NotifyInfo(ctx, session.ID(), "Please select "+slot.Label()+" again to retry")
	return tracker.State(slot), nil
}

// Remove clears an uploaded image once the user confirmed it.
func (s *Service) Remove(ctx context.Context, userID, sessionID, slotName string, confirmed bool) (upload.SlotState, error) {
	session, slot, err := s.slot(ctx, userID, sessionID, slotName)
	if err != nil {
		return upload.SlotState{}, err
	}
	tracker := session.Uploads()
	if err := session.ChangeUploads(func(t *upload.Tracker) error { return t.Remove(slot, confirmed) }); err != nil {
		return tracker.State(slot), err
	}
	s.notifier.NotifySuccess(ctx, session.ID(), "Image removed successfully")
	s.emit(ctx, session, audit.EventUploadRemoved, string(slot), "success", "")
	return tracker.State(slot), nil
}

func (s *Service) session(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, ErrSessionNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification session")
	}
	if session.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	session.Touch(requestcontext.Now(ctx))
	return session, nil
}

func (s *Service) slot(ctx context.Context, userID, sessionID, slotName string) (*models.Session, upload.Slot, error) {
	slot, err := upload.ParseSlot(slotName)
	if err != nil {
		return nil, "", err
	}
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return nil, "", err
	}
	return session, slot, nil
}

func (s *Service) emit(ctx context.Context, session *models.Session, action audit.AuditEvent, subject, outcome, reason string) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.NewEvent(ctx, action, session.UserID())
	event.SessionID = session.ID()
	event.Subject = subject
	event.Outcome = outcome
	event.Reason = reason
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(action), "error", err)
	}
}

func userMessage(err error) string {
	if de, ok := dErrors.As(err); ok && de.Code != dErrors.CodeInternal && de.Message != "" {
		return de.Message
	}
	return "Verification failed. Please try again."
}

func outcomeFor(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeRejected:
		return "rejected"
	case dErrors.CodeUnavailable:
		return "unavailable"
	case dErrors.CodeMissingCredential:
		return "missing_credential"
	}
	return "error"
}

func stepLabel(step models.Step) string {
	switch step {
	case models.StepSelectDocument:
		return "select_document"
	case models.StepUploadDocuments:
		return "upload_documents"
	}
	return "verify"
}
