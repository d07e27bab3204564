package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"deeptrack/internal/aml/models"
	"deeptrack/internal/aml/service/mocks"
	"deeptrack/internal/backend"
	dErrors "deeptrack/pkg/domain-errors"
	audit "deeptrack/pkg/platform/audit"
)

type ServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	credentials *mocks.MockCredentialResolver
	auditor     *mocks.MockAuditPublisher
	status      int
	body        string
	seenQuery   url.Values
	seenKey     string
	calls       int
	service     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.credentials = mocks.NewMockCredentialResolver(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.status = http.StatusOK
	s.body = `{"riskLevel":"LOW","matchedEntity":null,"reasons":[]}`
	s.seenQuery = nil
	s.seenKey = ""
	s.calls = 0

	mux := http.NewServeMux()
	mux.HandleFunc("GET /aml/check-sanctions", func(w http.ResponseWriter, r *http.Request) {
		s.calls++
		s.seenQuery = r.URL.Query()
		s.seenKey = r.Header.Get(backend.APIKeyHeader)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.body))
	})
	srv := httptest.NewServer(mux)
	s.T().Cleanup(srv.Close)

	client, err := backend.New(srv.URL)
	s.Require().NoError(err)
	s.service = New(client, s.credentials, WithAuditPublisher(s.auditor))
}

func (s *ServiceSuite) query() *models.Query {
	q := &models.Query{FullName: "Ivan Petrov", Day: "12", Month: "4", Year: "1965", Nationality: "ru"}
	s.Require().NoError(q.Validate())
	return q
}

func (s *ServiceSuite) TestCheck_SendsQueryWithActiveKey() {
	s.credentials.EXPECT().ActiveKey(gomock.Any(), "user_1").Return("dt_live_key", nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		s.Equal(string(audit.EventAMLCheckPerformed), e.Action)
		s.Equal("person", e.Subject)
		s.Equal("low", e.Outcome)
		return nil
	})

	report, err := s.service.Check(context.Background(), "user_1", s.query())
	s.Require().NoError(err)
	s.Equal(models.RiskLow, report.RiskLevel)
	s.Equal(models.KindClear, report.Assessment.Kind())

	s.Equal("dt_live_key", s.seenKey)
	s.Equal("Ivan Petrov", s.seenQuery.Get("fullName"))
	s.Equal("1965-04-12", s.seenQuery.Get("birthDate"))
	s.Equal("RU", s.seenQuery.Get("nationality"))
}

func (s *ServiceSuite) TestCheck_ShapesExposedPayload() {
	s.body = `{
		"riskLevel": "high",
		"reasons": ["Name matches sanctioned individual"],
		"matchedEntity": {
			"id": "Q7747",
			"caption": "Ivan Petrov",
			"first_seen": "2022-02-25",
			"datasets": ["gb_hmt_sanctions"],
			"properties": {
				"position": ["Governor of Tver Oblast (2011-2016)"],
				"country": ["ru"],
				"topics": ["sanction"],
				"familyRelative": [{"properties": {"relationship": ["son"], "relative": [{"caption": "Pavel Petrov", "datasets": ["ru_rupep"]}]}}]
			}
		}
	}`
	s.credentials.EXPECT().ActiveKey(gomock.Any(), "user_1").Return("dt_live_key", nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	report, err := s.service.Check(context.Background(), "user_1", s.query())
	s.Require().NoError(err)

	exposed, ok := report.Assessment.(models.Exposed)
	s.Require().True(ok)
	s.Equal("Name matches sanctioned individual. Further verification may be required.", exposed.Message)
	s.Require().Len(exposed.Sanctions, 1)
	s.Equal("HMT Sanctions List", exposed.Sanctions[0].List)
	s.Require().Len(exposed.PEP, 2)
	s.Equal("SON", exposed.PEP[1].RelationType)
	s.Equal("SANCTIONED ENTITY", report.Person.Role)
}

func (s *ServiceSuite) TestCheck_MissingCredentialSkipsBackend() {
	missing := dErrors.New(dErrors.CodeMissingCredential, "DeepTrack API key not found. Please create one first.")
	s.credentials.EXPECT().ActiveKey(gomock.Any(), "user_1").Return("", missing)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.service.Check(context.Background(), "user_1", s.query())
	s.ErrorIs(err, missing)
	s.Zero(s.calls)
}

func (s *ServiceSuite) TestCheck_BackendFailures() {
	cases := []struct {
		name   string
		status int
		code   dErrors.Code
	}{
		{name: "outage", status: http.StatusBadGateway, code: dErrors.CodeUnavailable},
		{name: "timeout", status: http.StatusGatewayTimeout, code: dErrors.CodeTimeout},
		{name: "rejected key", status: http.StatusUnauthorized, code: dErrors.CodeForbidden},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.status = tc.status
			s.body = `{"message":"nope"}`
			s.credentials.EXPECT().ActiveKey(gomock.Any(), "user_1").Return("dt_live_key", nil)
			s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
				s.Equal("failure", e.Outcome)
				return nil
			})

			_, err := s.service.Check(context.Background(), "user_1", s.query())
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
			s.Contains(err.Error(), checkFailedMessage)
		})
	}
}

func (s *ServiceSuite) TestCheck_AuditFailureDoesNotFailCheck() {
	s.credentials.EXPECT().ActiveKey(gomock.Any(), "user_1").Return("dt_live_key", nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errSinkDown)

	report, err := s.service.Check(context.Background(), "user_1", s.query())
	s.Require().NoError(err)
	s.NotNil(report)
}

var errSinkDown = dErrors.New(dErrors.CodeUnavailable, "sink down")
