package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"deeptrack/internal/billing/models"
	"deeptrack/pkg/testutil"
)

type stubService struct{}

func (stubService) Dashboard(context.Context, string) (*models.Dashboard, error) {
	return &models.Dashboard{Balance: 12, Message: "ok"}, nil
}

func TestHandleDashboard(t *testing.T) {
	r := chi.NewRouter()
	New(stubService{}, slog.Default()).Register(r)

	testutil.Given(t, "an anonymous request", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/billing"))
		testutil.Then(t, "it is rejected", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		})
	})

	testutil.Given(t, "a signed-in user", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/billing"), "user_1"))
		testutil.Then(t, "the balance is returned", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			testutil.AssertJSONContains(t, rr, "balance", float64(12))
		})
	})
}
