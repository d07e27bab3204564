package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deeptrack/internal/verification"
	"deeptrack/internal/wizard/upload"
	dErrors "deeptrack/pkg/domain-errors"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func uploadSlots(t *testing.T, s *Session, slots ...upload.Slot) {
	t.Helper()
	for _, slot := range slots {
		attempt, err := s.Uploads().Start(slot, upload.FileInfo{Name: string(slot) + ".jpg", Size: 10, Type: "image/jpeg"}, nil)
		require.NoError(t, err)
		require.NoError(t, s.Uploads().Progress(slot, attempt, 50))
		require.NoError(t, s.Uploads().Complete(slot, attempt, "https://cdn/"+string(slot), upload.FileInfo{}))
	}
}

func atVerify(t *testing.T) *Session {
	t.Helper()
	s := NewSession("user_1", now)
	require.NoError(t, s.SelectDocument(DocumentIDCard))
	_, err := s.ApplyAdvance()
	require.NoError(t, err)
	uploadSlots(t, s, upload.Slots...)
	_, err = s.ApplyAdvance()
	require.NoError(t, err)
	return s
}

func TestParseDocumentType(t *testing.T) {
	for _, dt := range DocumentTypes {
		got, err := ParseDocumentType(string(dt))
		require.NoError(t, err)
		assert.Equal(t, dt, got)
		assert.NotEqual(t, "Identification Document", got.Label())
	}
	_, err := ParseDocumentType("library-card")
	assert.ErrorIs(t, err, ErrUnsupportedDocument)
}

func TestAdvanceFromSelect(t *testing.T) {
	t.Run("every document type advances to upload", func(t *testing.T) {
		for _, dt := range DocumentTypes {
			s := NewSession("user_1", now)
			require.NoError(t, s.SelectDocument(dt))
			step, err := s.ApplyAdvance()
			require.NoError(t, err)
			assert.Equal(t, StepUploadDocuments, step)
		}
	})

	t.Run("no selection stays at step 0", func(t *testing.T) {
		s := NewSession("user_1", now)
		step, err := s.ApplyAdvance()
		assert.ErrorIs(t, err, ErrNoDocumentSelected)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed))
		assert.Equal(t, StepSelectDocument, step)
		assert.Equal(t, StepSelectDocument, s.Step())
	})
}

func TestAdvanceFromUpload(t *testing.T) {
	subsets := [][]upload.Slot{
		{},
		{upload.SlotFace},
		{upload.SlotFrontID},
		{upload.SlotBackID},
		{upload.SlotFace, upload.SlotFrontID},
		{upload.SlotFace, upload.SlotBackID},
		{upload.SlotFrontID, upload.SlotBackID},
	}
	for _, done := range subsets {
		s := NewSession("user_1", now)
		require.NoError(t, s.SelectDocument(DocumentPassport))
		_, err := s.ApplyAdvance()
		require.NoError(t, err)
		uploadSlots(t, s, done...)

		step, err := s.ApplyAdvance()
		assert.ErrorIs(t, err, ErrUploadsIncomplete, "uploaded %v", done)
		assert.Equal(t, StepUploadDocuments, step)
	}

	s := atVerify(t)
	assert.Equal(t, StepVerify, s.Step())
}

func TestAdvanceRevalidatesLiveState(t *testing.T) {
	s := NewSession("user_1", now)
	require.NoError(t, s.SelectDocument(DocumentIDCard))
	_, err := s.ApplyAdvance()
	require.NoError(t, err)
	uploadSlots(t, s, upload.Slots...)
	require.NoError(t, s.CanAdvance())

	require.NoError(t, s.Uploads().Remove(upload.SlotFace, true))
	_, err = s.ApplyAdvance()
	assert.ErrorIs(t, err, ErrUploadsIncomplete)
}

func TestVerifyStepNeverAdvances(t *testing.T) {
	s := atVerify(t)
	step, err := s.ApplyAdvance()
	assert.ErrorIs(t, err, ErrSubmitToAdvance)
	assert.Equal(t, StepVerify, step)
}

func TestRetreat(t *testing.T) {
	t.Run("floors at zero", func(t *testing.T) {
		s := NewSession("user_1", now)
		step, err := s.Retreat()
		require.NoError(t, err)
		assert.Equal(t, StepSelectDocument, step)
	})

	t.Run("no-op while in flight", func(t *testing.T) {
		s := atVerify(t)
		_, err := s.BeginSubmission()
		require.NoError(t, err)
		s.MarkInFlight()

		step, err := s.Retreat()
		require.NoError(t, err)
		assert.Equal(t, StepVerify, step)

		s.AbortSubmission()
		step, _ = s.Retreat()
		assert.Equal(t, StepUploadDocuments, step)
	})

	t.Run("rejected once terminal", func(t *testing.T) {
		s := atVerify(t)
		_, err := s.BeginSubmission()
		require.NoError(t, err)
		s.FinishSubmission(&verification.Result{Message: "ok"})

		_, err = s.Retreat()
		assert.ErrorIs(t, err, ErrSessionComplete)
	})
}

func TestSubmissionLifecycle(t *testing.T) {
	t.Run("requires the verify step", func(t *testing.T) {
		s := NewSession("user_1", now)
		_, err := s.BeginSubmission()
		assert.ErrorIs(t, err, ErrNotAtVerifyStep)
	})

	t.Run("returns the locators and blocks a second claim", func(t *testing.T) {
		s := atVerify(t)
		images, err := s.BeginSubmission()
		require.NoError(t, err)
		assert.Equal(t, verification.Images{
			Face:    "https://cdn/face",
			FrontID: "https://cdn/frontId",
			BackID:  "https://cdn/backId",
		}, images)
		assert.Equal(t, SubmissionResolvingCredential, s.Submission())

		_, err = s.BeginSubmission()
		assert.ErrorIs(t, err, ErrSubmissionBusy)
		assert.ErrorIs(t, s.SelectDocument(DocumentPassport), ErrSubmissionBusy)
		assert.ErrorIs(t, s.GuardUploads(), ErrSubmissionBusy)

		s.MarkInFlight()
		assert.Equal(t, SubmissionInFlight, s.Submission())
	})

	t.Run("abort keeps uploads and step", func(t *testing.T) {
		s := atVerify(t)
		_, err := s.BeginSubmission()
		require.NoError(t, err)
		s.MarkInFlight()
		s.AbortSubmission()

		assert.Equal(t, SubmissionIdle, s.Submission())
		assert.Equal(t, StepVerify, s.Step())
		assert.True(t, s.Uploads().AllUploaded())
		_, err = s.BeginSubmission()
		assert.NoError(t, err)
	})

	t.Run("finish makes the session terminal", func(t *testing.T) {
		s := atVerify(t)
		_, err := s.BeginSubmission()
		require.NoError(t, err)
		result := &verification.Result{Message: "done", FaceMatch: verification.FaceMatch{FaceMatch: true}}
		s.FinishSubmission(result)

		assert.True(t, s.Terminal())
		assert.Equal(t, "done", s.Result().Message)
		assert.ErrorIs(t, s.SelectDocument(DocumentPassport), ErrSessionComplete)
		_, err = s.BeginSubmission()
		assert.ErrorIs(t, err, ErrSessionComplete)

		result.Message = "mutated"
		assert.Equal(t, "done", s.Result().Message)
	})
}

func TestGuardUploads(t *testing.T) {
	s := NewSession("user_1", now)
	assert.NoError(t, s.GuardUploads())
	s = atVerify(t)
	assert.ErrorIs(t, s.GuardUploads(), ErrUploadsLocked)
}

func TestChangeUploads(t *testing.T) {
	t.Run("advance cannot interleave with a removal", func(t *testing.T) {
		s := NewSession("user_1", now)
		require.NoError(t, s.SelectDocument(DocumentIDCard))
		_, err := s.ApplyAdvance()
		require.NoError(t, err)
		uploadSlots(t, s, upload.Slots...)

		advanced := make(chan error, 1)
		err = s.ChangeUploads(func(tr *upload.Tracker) error {
			go func() {
				_, err := s.ApplyAdvance()
				advanced <- err
			}()
			return tr.Remove(upload.SlotFace, true)
		})
		require.NoError(t, err)

		assert.ErrorIs(t, <-advanced, ErrUploadsIncomplete)
		assert.Equal(t, StepUploadDocuments, s.Step())
	})

	t.Run("locked at the verify step", func(t *testing.T) {
		s := atVerify(t)
		called := false
		err := s.ChangeUploads(func(*upload.Tracker) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrUploadsLocked)
		assert.False(t, called)
		assert.True(t, s.Uploads().AllUploaded())
	})
}

func TestView(t *testing.T) {
	s := NewSession("user_1", now)
	require.NoError(t, s.SelectDocument(DocumentKRAPinCertificate))
	_, err := s.ApplyAdvance()
	require.NoError(t, err)
	s.Touch(now.Add(time.Minute))
	s.Touch(now)

	v := s.View()
	assert.Equal(t, s.ID(), v.ID)
	assert.Equal(t, StepUploadDocuments, v.Step)
	assert.Equal(t, "KRA PIN Certificate", v.DocumentLabel)
	assert.False(t, v.CanAdvance)
	assert.Len(t, v.Slots, 3)
	require.Len(t, v.Steps, 3)
	assert.True(t, v.Steps[0].Completed)
	assert.True(t, v.Steps[1].Current)
	assert.Equal(t, "Upload the required document images", v.Steps[1].Description)
	assert.Equal(t, now.Add(time.Minute), v.UpdatedAt)
}
