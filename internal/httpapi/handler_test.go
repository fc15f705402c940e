package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/ingest"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/logging"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/metrics"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/services"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/storage"
)

type fakeService struct {
	lastReq   models.ReviewRequest
	reviewErr error
	provider  string
	limit     int
}

func (f *fakeService) Review(_ context.Context, req models.ReviewRequest) (*models.ReviewResponse, error) {
	f.lastReq = req
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	return &models.ReviewResponse{Status: models.StatusCompleted, SessionID: "s-1", Review: &models.ReviewResult{SessionID: "s-1"}}, nil
}

func (f *fakeService) ProviderHealth(_ context.Context, provider string) models.ProviderHealthResponse {
	f.provider = provider
	return models.ProviderHealthResponse{Providers: map[string]models.ProviderStatus{"groq": {Available: true}}}
}

func (f *fakeService) Session(_ context.Context, id string) (*models.ReviewSession, []models.Finding, error) {
	if id != "s-1" {
		return nil, nil, fmt.Errorf("failed to get session %s: %w", id, storage.ErrNotFound)
	}
	return &models.ReviewSession{ID: "s-1", Status: models.SessionCompleted}, nil, nil
}

func (f *fakeService) RecentSessions(_ context.Context, limit int) ([]*models.ReviewSession, error) {
	f.limit = limit
	return []*models.ReviewSession{{ID: "s-1"}}, nil
}

type HandlerSuite struct {
	suite.Suite
	service *fakeService
	router  http.Handler
	reg     *prometheus.Registry
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &fakeService{}
	s.reg = prometheus.NewRegistry()
	m := metrics.New(s.reg)
	m.IncrementReview("completed")
	s.router = NewRouter(New(s.service, logging.Discard()), s.reg)
}

func (s *HandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (s *HandlerSuite) TestCreateReview() {
	rec := s.do(http.MethodPost, "/v1/reviews", `{"sourceUri":"gs://b/guide.pdf","forceOcr":true,"agents":["technical"]}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))
	s.Equal(models.ReviewRequest{SourceURI: "gs://b/guide.pdf", ForceOCR: true, Agents: []string{"technical"}}, s.service.lastReq)

	body := s.decode(rec)
	s.Equal("s-1", body["sessionId"])
	s.Equal("completed", body["status"])
}

func (s *HandlerSuite) TestCreateReviewErrors() {
	cases := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"malformed json", nil, `{`, http.StatusBadRequest, "bad_request"},
		{"invalid request", fmt.Errorf("%w: sourceUri is required", services.ErrInvalidRequest), `{}`, http.StatusBadRequest, "bad_request"},
		{"missing source", fmt.Errorf("%w: gs://b/x.pdf", ingest.ErrSourceNotFound), `{"sourceUri":"gs://b/x.pdf"}`, http.StatusNotFound, "not_found"},
		{"unsupported", fmt.Errorf("failed to process document: %w", ingest.ErrUnsupportedFormat), `{"sourceUri":"a.dwg"}`, http.StatusUnprocessableEntity, "unsupported_format"},
		{"internal", fmt.Errorf("boom"), `{"sourceUri":"a.pdf"}`, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.reviewErr = tc.err
			rec := s.do(http.MethodPost, "/v1/reviews", tc.body)
			s.Equal(tc.status, rec.Code)
			body := s.decode(rec)
			s.Equal(tc.code, body["error"])
			if tc.status == http.StatusInternalServerError {
				s.NotContains(body, "error_description")
			}
		})
	}
}

func (s *HandlerSuite) TestGetReview() {
	rec := s.do(http.MethodGet, "/v1/reviews/s-1", "")
	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal([]any{}, body["findings"])

	rec = s.do(http.MethodGet, "/v1/reviews/nope", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestListReviews() {
	rec := s.do(http.MethodGet, "/v1/reviews?limit=5", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(5, s.service.limit)

	rec = s.do(http.MethodGet, "/v1/reviews?limit=zero", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestProviderHealth() {
	rec := s.do(http.MethodGet, "/v1/providers/health?provider=groq", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("groq", s.service.provider)
	s.Contains(rec.Body.String(), `"available":true`)
}

func (s *HandlerSuite) TestHealthzAndMetrics() {
	rec := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "review_runs_total")
}

func (s *HandlerSuite) TestUnknownMethod() {
	rec := s.do(http.MethodDelete, "/v1/reviews", "")
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}
