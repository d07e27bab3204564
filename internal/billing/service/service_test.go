package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apikeys "deeptrack/internal/apikeys/models"
	"deeptrack/internal/backend"
	dErrors "deeptrack/pkg/domain-errors"
)

type directoryFunc func(ctx context.Context, userID string) (string, error)

func (f directoryFunc) CompanyID(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}

type keyList []apikeys.APIKey

func (k keyList) List(context.Context, string) ([]apikeys.APIKey, error) { return k, nil }

func newBackend(t *testing.T, balanceBody string, verificationsStatus int) *backend.Client {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/v1/credits/balance/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(balanceBody))
	})
	r.Get("/v1/credits/verifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(verificationsStatus)
		_, _ = w.Write([]byte(`[
			{"type":"id_verification","completed":true,"creditCost":2,"createdAt":"2026-01-02T10:00:00Z"},
			{"type":"aml_check","completed":false,"creditCost":1,"createdAt":"2026-01-03T10:00:00Z"},
			{"type":"id_verification","completed":null,"creditCost":2,"createdAt":"2026-01-01T10:00:00Z"}
		]`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c, err := backend.New(srv.URL)
	require.NoError(t, err)
	return c
}

var company = directoryFunc(func(context.Context, string) (string, error) { return "co-1", nil })

func TestDashboard(t *testing.T) {
	keys := keyList{{Status: apikeys.StatusActive}, {Status: apikeys.StatusSuspended}}
	svc := New(newBackend(t, `{"balance": 42}`, http.StatusOK), company, keys)

	d, err := svc.Dashboard(context.Background(), "user_1")
	require.NoError(t, err)
	assert.EqualValues(t, 42, d.Balance)
	assert.Equal(t, 1, d.ActiveKeys)

	require.Len(t, d.Verifications, 3)
	assert.Equal(t, "aml check", d.Verifications[0].Type, "newest first")
	assert.Equal(t, "Failed", d.Verifications[0].Status)
	assert.Equal(t, "Completed", d.Verifications[1].Status)
	assert.Equal(t, "Pending", d.Verifications[2].Status)
	assert.Equal(t, "Jan 03, 2026", d.Verifications[0].Date)

	require.Len(t, d.Usage, 2)
	assert.Equal(t, "id_verification", d.Usage[0].Type)
	assert.Equal(t, 2, d.Usage[0].Count)
	assert.EqualValues(t, 4, d.Usage[0].Credits)
}

func TestDashboard_BareNumberBalance(t *testing.T) {
	svc := New(newBackend(t, `17`, http.StatusOK), company, keyList{})
	d, err := svc.Dashboard(context.Background(), "user_1")
	require.NoError(t, err)
	assert.EqualValues(t, 17, d.Balance)
}

func TestDashboard_NoCompany(t *testing.T) {
	noCompany := directoryFunc(func(context.Context, string) (string, error) {
		return "", dErrors.New(dErrors.CodePreconditionFailed, "No Company Id")
	})
	svc := New(newBackend(t, `0`, http.StatusOK), noCompany, keyList{})

	d, err := svc.Dashboard(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "No Company Id", d.Message)
	assert.Empty(t, d.Verifications)
}

func TestDashboard_PartialFailure(t *testing.T) {
	svc := New(newBackend(t, `5`, http.StatusServiceUnavailable), company, keyList{})
	_, err := svc.Dashboard(context.Background(), "user_1")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}
