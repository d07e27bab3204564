package models

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"deeptrack/internal/verification"
	"deeptrack/internal/wizard/upload"
)

// Session is one user's pass through the verification wizard. All methods
// are safe for concurrent use; each transition holds the session lock.
type Session struct {
	mu sync.Mutex

	id           string
	userID       string
	step         Step
	documentType DocumentType
	tracker      *upload.Tracker
	submission   Submission
	result       *verification.Result
	createdAt    time.Time
	touchedAt    time.Time
}

func NewSession(userID string, now time.Time) *Session {
	return &Session{
		id:         uuid.NewString(),
		userID:     userID,
		step:       StepSelectDocument,
		tracker:    upload.NewTracker(),
		submission: SubmissionIdle,
		createdAt:  now,
		touchedAt:  now,
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) UserID() string { return s.userID }

// Uploads exposes the slot tracker. Transport callbacks report to it directly.
func (s *Session) Uploads() *upload.Tracker { return s.tracker }

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) DocumentType() DocumentType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentType
}

func (s *Session) Submission() Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submission
}

// Result returns the verification result, or nil before a successful submission.
func (s *Session) Result() *verification.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.Clone()
}

// Terminal reports whether a verification result has been received.
func (s *Session) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil
}

func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.touchedAt) {
		s.touchedAt = now
	}
}

func (s *Session) TouchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// SelectDocument records the document type. Allowed before submission only.
func (s *Session) SelectDocument(t DocumentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return err
	}
	if !t.IsValid() {
		return ErrUnsupportedDocument
	}
	s.documentType = t
	return nil
}

func (s *Session) mutable() error {
	if s.result != nil {
		return ErrSessionComplete
	}
	if s.submission.Busy() {
		return ErrSubmissionBusy
	}
	return nil
}

// CanAdvance evaluates the current step's predicate against live state.
// At the verify step it reports whether a submission may start.
func (s *Session) CanAdvance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAdvance()
}

func (s *Session) canAdvance() error {
	if err := s.mutable(); err != nil {
		return err
	}
	switch s.step {
	case StepSelectDocument:
		if s.documentType == "" {
			return ErrNoDocumentSelected
		}
	case StepUploadDocuments, StepVerify:
		if !s.tracker.AllUploaded() {
			return ErrUploadsIncomplete
		}
	}
	return nil
}

// ApplyAdvance moves from step 0 to 1 or 1 to 2. The verify step never
// advances; submission takes over there.
func (s *Session) ApplyAdvance() (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step == StepVerify {
		return s.step, ErrSubmitToAdvance
	}
	if err := s.canAdvance(); err != nil {
		return s.step, err
	}
	s.step++
	return s.step, nil
}

// Retreat steps back with a floor of 0. It is a no-op while a submission
// is in flight.
func (s *Session) Retreat() (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return s.step, ErrSessionComplete
	}
	if s.submission.Busy() {
		return s.step, nil
	}
	if s.step > StepSelectDocument {
		s.step--
	}
	return s.step, nil
}

// GuardUploads rejects user-initiated slot changes outside the document
// selection and upload steps, or while a submission holds the locators.
func (s *Session) GuardUploads() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guardUploads()
}

func (s *Session) guardUploads() error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.step == StepVerify {
		return ErrUploadsLocked
	}
	return nil
}

// ChangeUploads runs fn against the tracker while holding the session lock,
// so no step transition can interleave between the guard and the change.
// fn must not call back into the session.
func (s *Session) ChangeUploads(fn func(t *upload.Tracker) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardUploads(); err != nil {
		return err
	}
	return fn(s.tracker)
}

// BeginSubmission claims the session for a verification call and returns the
// locators to send. The claim must be released by AbortSubmission or
// FinishSubmission.
func (s *Session) BeginSubmission() (verification.Images, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return verification.Images{}, err
	}
	if s.step != StepVerify {
		return verification.Images{}, ErrNotAtVerifyStep
	}
	locators := s.tracker.Locators()
	images := verification.Images{
		Face:    locators[upload.SlotFace],
		FrontID: locators[upload.SlotFrontID],
		BackID:  locators[upload.SlotBackID],
	}
	if !images.Complete() {
		return verification.Images{}, ErrUploadsIncomplete
	}
	s.submission = SubmissionResolvingCredential
	return images, nil
}

// MarkInFlight records that the verification request is being sent.
func (s *Session) MarkInFlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submission == SubmissionResolvingCredential {
		s.submission = SubmissionInFlight
	}
}

// AbortSubmission releases the claim without a result. Step and uploads are
// left as they were so the user can submit again.
func (s *Session) AbortSubmission() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submission = SubmissionIdle
}

// FinishSubmission stores the result and makes the session terminal.
func (s *Session) FinishSubmission(result *verification.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submission = SubmissionIdle
	if result != nil {
		s.result = result.Clone()
	}
}

// StepView describes one wizard step for display.
type StepView struct {
	Index       Step   `json:"index"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Current     bool   `json:"current"`
	Completed   bool   `json:"completed"`
}

// View is a consistent snapshot of a session for clients.
type View struct {
	ID            string             `json:"id"`
	Step          Step               `json:"step"`
	Steps         []StepView         `json:"steps"`
	DocumentType  DocumentType       `json:"document_type,omitempty"`
	DocumentLabel string             `json:"document_label,omitempty"`
	Slots         []upload.SlotState `json:"slots"`
	Submission    Submission         `json:"submission"`
	CanAdvance    bool               `json:"can_advance"`
	Completed     bool               `json:"completed"`
	Successful    bool               `json:"successful"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:         s.id,
		Step:       s.step,
		Slots:      s.tracker.Snapshot(),
		Submission: s.submission,
		CanAdvance: s.canAdvance() == nil,
		Completed:  s.result != nil,
		Successful: s.result.Successful(),
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.touchedAt,
	}
	if s.documentType != "" {
		v.DocumentType = s.documentType
		v.DocumentLabel = s.documentType.Label()
	}
	for _, st := range Steps {
		v.Steps = append(v.Steps, StepView{
			Index:       st,
			Title:       st.Title(),
			Description: st.Description(),
			Current:     st == s.step,
			Completed:   st < s.step || s.result != nil,
		})
	}
	return v
}
