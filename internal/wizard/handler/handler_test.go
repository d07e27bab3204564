package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deeptrack/internal/verification"
	"deeptrack/internal/wizard/models"
	"deeptrack/internal/wizard/notify"
	"deeptrack/internal/wizard/upload"
	dErrors "deeptrack/pkg/domain-errors"
	"deeptrack/pkg/testutil"
)

type stubService struct {
	err       error
	userID    string
	sessionID string
	slot      string
	document  string
	confirmed bool
	file      upload.File
	body      []byte
}

func (s *stubService) view(userID, sessionID string) (models.View, error) {
	s.userID, s.sessionID = userID, sessionID
	return models.View{ID: sessionID, Step: models.StepUploadDocuments}, s.err
}

func (s *stubService) state(userID, sessionID, slot string) (upload.SlotState, error) {
	s.userID, s.sessionID, s.slot = userID, sessionID, slot
	return upload.SlotState{Slot: upload.Slot(slot), Phase: upload.PhaseIdle}, s.err
}

func (s *stubService) Create(_ context.Context, userID string) (models.View, error) {
	return s.view(userID, "s-new")
}

func (s *stubService) Get(_ context.Context, userID, sessionID string) (models.View, error) {
	return s.view(userID, sessionID)
}

func (s *stubService) List(_ context.Context, userID string) ([]models.View, error) {
	v, err := s.view(userID, "s-1")
	return []models.View{v}, err
}

func (s *stubService) Discard(_ context.Context, userID, sessionID string) error {
	_, err := s.view(userID, sessionID)
	return err
}

func (s *stubService) SelectDocument(_ context.Context, userID, sessionID, documentType string) (models.View, error) {
	s.document = documentType
	return s.view(userID, sessionID)
}

func (s *stubService) Advance(_ context.Context, userID, sessionID string) (models.View, error) {
	return s.view(userID, sessionID)
}

func (s *stubService) Retreat(_ context.Context, userID, sessionID string) (models.View, error) {
	return s.view(userID, sessionID)
}

func (s *stubService) Upload(_ context.Context, userID, sessionID, slot string, file upload.File) (upload.SlotState, error) {
	s.file = file
	s.body, _ = io.ReadAll(file.Body)
	st, err := s.state(userID, sessionID, slot)
	st.Phase = upload.PhaseUploading
	st.Progress = 1
	return st, err
}

func (s *stubService) Cancel(_ context.Context, userID, sessionID, slot string) (upload.SlotState, error) {
	return s.state(userID, sessionID, slot)
}

func (s *stubService) Retry(_ context.Context, userID, sessionID, slot string) (upload.SlotState, error) {
	return s.state(userID, sessionID, slot)
}

func (s *stubService) Remove(_ context.Context, userID, sessionID, slot string, confirmed bool) (upload.SlotState, error) {
	s.confirmed = confirmed
	return s.state(userID, sessionID, slot)
}

func (s *stubService) Result(_ context.Context, userID, sessionID string) (verification.Summary, error) {
	s.userID, s.sessionID = userID, sessionID
	return verification.Summary{DocumentType: "id-card", Successful: true, Verdict: "VERIFICATION SUCCESSFUL"}, s.err
}

func (s *stubService) Notifications(_ context.Context, userID, sessionID string) ([]notify.Notification, error) {
	s.userID, s.sessionID = userID, sessionID
	return []notify.Notification{{ID: 1, Level: notify.LevelInfo, Message: "Please select Face Image again to retry"}}, s.err
}

func router(svc Service, opts ...Option) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.Default(), opts...).Register(r)
	return r
}

func authed(req *http.Request) *http.Request {
	return testutil.WithUserID(req, "user_1")
}

func TestRequiresUser(t *testing.T) {
	rr := testutil.DoRequest(router(&stubService{}), testutil.NewRequest(t, http.MethodPost, "/verifications"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestSessionRoutes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/verifications", http.StatusCreated},
		{http.MethodGet, "/verifications/s-1", http.StatusOK},
		{http.MethodPost, "/verifications/s-1/advance", http.StatusOK},
		{http.MethodPost, "/verifications/s-1/retreat", http.StatusOK},
		{http.MethodDelete, "/verifications/s-1", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			svc := &stubService{}
			rr := testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, tt.method, tt.path)))
			testutil.AssertStatus(t, rr, tt.status)
			assert.Equal(t, "user_1", svc.userID)
		})
	}
}

func TestHandleList(t *testing.T) {
	rr := testutil.DoRequest(router(&stubService{}), authed(testutil.NewRequest(t, http.MethodGet, "/verifications")))
	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[struct {
		Sessions []models.View `json:"sessions"`
	}](t, rr)
	assert.Len(t, resp.Sessions, 1)
}

func TestHandleSelectDocument(t *testing.T) {
	testutil.Given(t, "a document type in the body", func(t *testing.T) {
		svc := &stubService{}
		req := authed(testutil.NewJSONRequest(t, http.MethodPut, "/verifications/s-1/document", map[string]string{"document_type": " passport "}))
		rr := testutil.DoRequest(router(svc), req)

		testutil.Then(t, "the trimmed type reaches the service", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			assert.Equal(t, "passport", svc.document)
			assert.Equal(t, "s-1", svc.sessionID)
		})
	})

	testutil.Given(t, "an empty body", func(t *testing.T) {
		req := authed(testutil.NewJSONRequest(t, http.MethodPut, "/verifications/s-1/document", map[string]string{}))
		rr := testutil.DoRequest(router(&stubService{}), req)
		testutil.Then(t, "validation fails", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		})
	})
}

func TestHandleAdvanceErrors(t *testing.T) {
	t.Run("precondition", func(t *testing.T) {
		svc := &stubService{err: models.ErrUploadsIncomplete}
		rr := testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodPost, "/verifications/s-1/advance")))
		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
		testutil.AssertErrorDescription(t, rr, "Please upload all required images")
	})

	t.Run("missing credential redirects", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeMissingCredential, "DeepTrack API key not found. Please create one first.")}
		rr := testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodPost, "/verifications/s-1/advance")))
		testutil.AssertStatus(t, rr, http.StatusPreconditionFailed)
		body := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, "missing_credential", body["error"])
		assert.Equal(t, CredentialsPath, body["redirect_to"])
	})

	t.Run("timeout is distinct from rejection", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeTimeout, "Verification timed out. Please try again.")}
		rr := testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodPost, "/verifications/s-1/advance")))
		testutil.AssertStatusAndError(t, rr, http.StatusGatewayTimeout, "timeout")

		svc = &stubService{err: dErrors.New(dErrors.CodeRejected, "Invalid image URL")}
		rr = testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodPost, "/verifications/s-1/advance")))
		testutil.AssertStatusAndError(t, rr, http.StatusBadGateway, "verification_rejected")
	})
}

func TestHandleUpload(t *testing.T) {
	t.Run("passes the file to the service", func(t *testing.T) {
		svc := &stubService{}
		img := bytes.Repeat([]byte{0xff}, 512)
		req := authed(testutil.NewMultipartRequest(t, http.MethodPut, "/verifications/s-1/uploads/face", "file", "selfie.jpg", "image/jpeg", img))
		rr := testutil.DoRequest(router(svc), req)

		testutil.AssertStatus(t, rr, http.StatusAccepted)
		assert.Equal(t, "face", svc.slot)
		assert.Equal(t, "selfie.jpg", svc.file.Name)
		assert.Equal(t, "image/jpeg", svc.file.ContentType)
		assert.Equal(t, int64(512), svc.file.Size)
		assert.Equal(t, img, svc.body)

		st := testutil.UnmarshalResponse[upload.SlotState](t, rr)
		assert.Equal(t, upload.PhaseUploading, st.Phase)
	})

	t.Run("missing file field", func(t *testing.T) {
		req := authed(testutil.NewMultipartRequest(t, http.MethodPut, "/verifications/s-1/uploads/face", "image", "a.jpg", "image/jpeg", []byte("x")))
		rr := testutil.DoRequest(router(&stubService{}), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("not multipart", func(t *testing.T) {
		req := authed(testutil.NewJSONRequest(t, http.MethodPut, "/verifications/s-1/uploads/face", map[string]string{}))
		rr := testutil.DoRequest(router(&stubService{}), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("oversized body", func(t *testing.T) {
		big := bytes.Repeat([]byte{0xff}, 2<<20)
		req := authed(testutil.NewMultipartRequest(t, http.MethodPut, "/verifications/s-1/uploads/face", "file", "a.jpg", "image/jpeg", big))
		rr := testutil.DoRequest(router(&stubService{}, WithMaxUploadBytes(1)), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
}

func TestSlotRoutes(t *testing.T) {
	for _, path := range []string{"/verifications/s-1/uploads/backId/cancel", "/verifications/s-1/uploads/backId/retry"} {
		svc := &stubService{}
		rr := testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodPost, path)))
		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, "backId", svc.slot)
	}
}

func TestHandleRemove(t *testing.T) {
	svc := &stubService{}
	rr := testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodDelete, "/verifications/s-1/uploads/face?confirm=true")))
	testutil.AssertStatusOK(t, rr)
	assert.True(t, svc.confirmed)

	svc = &stubService{err: dErrors.New(dErrors.CodeConfirmationRequired, "Removing Face Image requires confirmation")}
	rr = testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodDelete, "/verifications/s-1/uploads/face")))
	testutil.AssertStatusAndError(t, rr, http.StatusPreconditionRequired, "confirmation_required")
	assert.False(t, svc.confirmed)
}

func TestHandleResultAndNotifications(t *testing.T) {
	svc := &stubService{}
	rr := testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodGet, "/verifications/s-1/result")))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "verdict", "VERIFICATION SUCCESSFUL")

	rr = testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodGet, "/verifications/s-1/notifications")))
	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[struct {
		Notifications []notify.Notification `json:"notifications"`
	}](t, rr)
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, notify.LevelInfo, resp.Notifications[0].Level)
}

func TestNotFound(t *testing.T) {
	svc := &stubService{err: dErrors.New(dErrors.CodeNotFound, "verification session not found or expired")}
	rr := testutil.DoRequest(router(svc), authed(testutil.NewRequest(t, http.MethodGet, "/verifications/nope")))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
