package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"deeptrack/internal/organization/models"
	dErrors "deeptrack/pkg/domain-errors"
	"deeptrack/pkg/testutil"
)

type stubService struct {
	hasCompany bool
	created    *models.NewCompany
	added      *models.NewUser
}

func (s *stubService) Onboarding(context.Context, string) (*models.Onboarding, error) {
	return &models.Onboarding{Next: models.NextCreateCompany}, nil
}

func (s *stubService) AddUser(_ context.Context, userID string, in models.NewUser) (*models.User, error) {
	s.added = &in
	return &models.User{UserID: userID, Email: in.Email, Role: in.Role}, nil
}

func (s *stubService) CreateCompany(_ context.Context, userID string, in models.NewCompany) (*models.Company, error) {
	s.created = &in
	return &models.Company{ID: "co-1", CompanyHeadID: userID, Name: in.Name}, nil
}

func (s *stubService) HasCompany(context.Context, string) (bool, error) { return s.hasCompany, nil }

func (s *stubService) CompanyByHead(context.Context, string) (*models.Company, error) {
	return nil, dErrors.New(dErrors.CodeNotFound, "company not found")
}

func (s *stubService) Members(context.Context, string) ([]models.Member, error) {
	return []models.Member{}, nil
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.Default()).Register(r)
	return r
}

func TestHandleOnboarding_RequiresUser(t *testing.T) {
	rr := testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequest(t, http.MethodGet, "/onboarding"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestHandleOnboarding(t *testing.T) {
	req := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/onboarding"), "user_1")
	rr := testutil.DoRequest(newRouter(&stubService{}), req)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "next", "new-org")
}

func TestHandleCreateCompany(t *testing.T) {
	valid := map[string]string{
		"name":          " Acme ",
		"email":         "ops@acme.io",
		"phone":         "+254 712 345 678",
		"companyDomain": "media",
	}

	t.Run("normalizes and creates", func(t *testing.T) {
		svc := &stubService{}
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, "/companies", valid), "head")
		rr := testutil.DoRequest(newRouter(svc), req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		if assert.NotNil(t, svc.created) {
			assert.Equal(t, "Acme", svc.created.Name)
			assert.Equal(t, "+254712345678", svc.created.Phone)
			assert.Equal(t, models.DomainMedia, svc.created.CompanyDomain)
		}
	})

	t.Run("rejects invalid domain", func(t *testing.T) {
		body := map[string]string{"name": "Acme", "email": "ops@acme.io", "phone": "+254712345678", "companyDomain": "retail"}
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, "/companies", body), "head")
		rr := testutil.DoRequest(newRouter(&stubService{}), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("conflict when already in a company", func(t *testing.T) {
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, "/companies", valid), "head")
		rr := testutil.DoRequest(newRouter(&stubService{hasCompany: true}), req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})
}

func TestHandleAddUser_ValidatesRole(t *testing.T) {
	body := map[string]string{"email": "a@acme.io", "fullName": "Ada", "role": "owner"}
	req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, "/users", body), "user_1")
	rr := testutil.DoRequest(newRouter(&stubService{}), req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
}

func TestHandleAddUser_DerivesMissingName(t *testing.T) {
	svc := &stubService{}
	body := map[string]string{"email": "ada.lovelace@acme.io", "role": "admin"}
	req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, "/users", body), "user_1")
	rr := testutil.DoRequest(newRouter(svc), req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	if assert.NotNil(t, svc.added) {
		assert.Equal(t, "Ada Lovelace", svc.added.FullName)
	}
}

func TestHandleMyCompany_NotFound(t *testing.T) {
	req := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/companies/mine"), "user_1")
	rr := testutil.DoRequest(newRouter(&stubService{}), req)
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
