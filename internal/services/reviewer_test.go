package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/agents"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/config"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/ingest"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/llm"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/logging"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/review"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/storage"
)

type memSource map[string][]byte

func (m memSource) Read(_ context.Context, name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ingest.ErrSourceNotFound, name)
	}
	return data, nil
}

// brokenStore fails every call.
type brokenStore struct{ storage.Store }

func (brokenStore) CreateSession(context.Context, *models.ReviewSession) (string, error) {
	return "", errors.New("firestore unavailable")
}

type recordingNotifier struct {
	mu   sync.Mutex
	args []WorkflowArgument
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, arg WorkflowArgument) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.args = append(n.args, arg)
	return "executions/1", n.err
}

type memReports struct {
	reports map[string]string
	err     error
}

func (r *memReports) Write(_ context.Context, sessionID, report string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.reports[sessionID] = report
	return "mem://" + sessionID, nil
}

type stubHealth struct{}

func (stubHealth) TestConnection(_ context.Context, provider string) map[string]llm.ConnectionStatus {
	out := map[string]llm.ConnectionStatus{
		"groq":   {Available: true, Latency: 120 * time.Millisecond, SampleOutput: "OK"},
		"vertex": {Error: "connection refused"},
	}
	if provider != "" {
		return map[string]llm.ConnectionStatus{provider: out[provider]}
	}
	return out
}

const guide = "Reader Installation\nConnect the power wires to the terminal. Drill two holes and mount the bracket."

// ReviewServiceSuite drives the service with real ingestion and rule-based agents.
type ReviewServiceSuite struct {
	suite.Suite
	source   memSource
	store    *storage.MemoryStore
	notifier *recordingNotifier
	reports  *memReports
}

func TestReviewServiceSuite(t *testing.T) {
	suite.Run(t, new(ReviewServiceSuite))
}

func (s *ReviewServiceSuite) SetupTest() {
	s.source = memSource{
		"gs://uploads/guide.txt": []byte(guide),
		"gs://uploads/cad.dwg":   []byte("AC1032"),
	}
	s.store = storage.NewMemoryStore()
	s.notifier = &recordingNotifier{}
	s.reports = &memReports{reports: map[string]string{}}
}

func (s *ReviewServiceSuite) service(store storage.Store) *ReviewService {
	logger := logging.Discard()
	list, err := agents.Build(agents.Names(), agents.Options{MaxTokens: 100, Logger: logger})
	s.Require().NoError(err)

	svc, err := NewReviewService(Dependencies{
		Source:    s.source,
		Processor: ingest.NewProcessor(s.source, nil, config.Default().OCR, nil, logger),
		Reviewer:  review.NewOrchestrator(list, review.Options{AgentTimeout: time.Second, Concurrency: 4, Logger: logger}),
		Store:     store,
		Health:    stubHealth{},
		Reports:   s.reports,
		Workflow:  s.notifier,
		Logger:    logger,
	})
	s.Require().NoError(err)
	return svc
}

func (s *ReviewServiceSuite) TestReviewPersistsAndNotifies() {
	ctx := context.Background()
	resp, err := s.service(s.store).Review(ctx, models.ReviewRequest{SourceURI: "gs://uploads/guide.txt", UserID: "u-1"})
	s.Require().NoError(err)

	s.Equal(models.StatusCompleted, resp.Status)
	s.Equal("guide.txt", resp.Content.SourceName)
	s.Equal(models.MethodTextExtraction, resp.Content.ExtractionMethod)
	s.Equal([]string{"technical", "formatting", "brand", "diagram", "summary"}, resp.Review.AgentNames())
	s.NotEmpty(resp.Review.Findings)
	s.Equal("mem://"+resp.SessionID, resp.ReportURI)

	session, findings, err := s.service(s.store).Session(ctx, resp.SessionID)
	s.Require().NoError(err)
	s.Equal(models.SessionCompleted, session.Status)
	s.Equal("u-1", session.UserID)
	s.Equal(hashBytes([]byte(guide)), session.FileHash)
	s.Equal(string(models.MethodTextExtraction), session.ProcessingMethod)
	s.Len(findings, len(resp.Review.Findings))

	s.Require().Len(s.notifier.args, 1)
	s.Equal(WorkflowArgument{SessionID: resp.SessionID, Status: models.StatusCompleted, FindingCount: len(resp.Review.Findings)}, s.notifier.args[0])
	s.Contains(s.reports.reports[resp.SessionID], "# Review: guide.txt")
}

func (s *ReviewServiceSuite) TestAgentSelection() {
	resp, err := s.service(s.store).Review(context.Background(), models.ReviewRequest{
		SourceURI: "gs://uploads/guide.txt",
		Agents:    []string{"diagram", "technical"},
	})
	s.Require().NoError(err)
	s.Equal([]string{"technical", "diagram"}, resp.Review.AgentNames())
}

func (s *ReviewServiceSuite) TestInputErrors() {
	svc := s.service(s.store)
	ctx := context.Background()

	_, err := svc.Review(ctx, models.ReviewRequest{})
	s.ErrorIs(err, ErrInvalidRequest)

	_, err = svc.Review(ctx, models.ReviewRequest{SourceURI: "gs://uploads/missing.pdf"})
	s.ErrorIs(err, ingest.ErrSourceNotFound)

	_, err = svc.Review(ctx, models.ReviewRequest{SourceURI: "gs://uploads/cad.dwg"})
	s.ErrorIs(err, ingest.ErrUnsupportedFormat)

	sessions, err := s.store.RecentSessions(ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(models.SessionFailed, sessions[0].Status)
	s.Contains(sessions[0].ErrorDetails, "failed to process document")
	s.Empty(s.notifier.args)
}

func (s *ReviewServiceSuite) TestStoreFailureFallsBackToLocalID() {
	resp, err := s.service(brokenStore{}).Review(context.Background(), models.ReviewRequest{SourceURI: "gs://uploads/guide.txt"})
	s.Require().NoError(err)
	s.Len(resp.SessionID, 36)
	s.Equal(models.StatusCompleted, resp.Status)
}

func (s *ReviewServiceSuite) TestSideEffectFailuresAreNotReturned() {
	s.notifier.err = errors.New("workflow down")
	s.reports.err = errors.New("bucket missing")

	resp, err := s.service(s.store).Review(context.Background(), models.ReviewRequest{SourceURI: "gs://uploads/guide.txt"})
	s.Require().NoError(err)
	s.Empty(resp.ReportURI)
	s.Len(s.notifier.args, 1)
}

func (s *ReviewServiceSuite) TestReviewUploadSkipsDuplicates() {
	svc := s.service(s.store)
	ctx := context.Background()
	event := models.GCSEvent{Bucket: "uploads", Name: "guide.txt"}

	first, err := svc.ReviewUpload(ctx, event)
	s.Require().NoError(err)
	s.Require().NotNil(first)

	again, err := svc.ReviewUpload(ctx, event)
	s.Require().NoError(err)
	s.Nil(again)

	sessions, err := svc.RecentSessions(ctx, 10)
	s.Require().NoError(err)
	s.Len(sessions, 1)
}

func (s *ReviewServiceSuite) TestProviderHealth() {
	svc := s.service(s.store)

	all := svc.ProviderHealth(context.Background(), "")
	s.Len(all.Providers, 2)
	s.True(all.Providers["groq"].Available)
	s.Equal("120ms", all.Providers["groq"].Latency)
	s.Equal("connection refused", all.Providers["vertex"].Error)

	one := svc.ProviderHealth(context.Background(), "vertex")
	s.Len(one.Providers, 1)
	s.False(one.Providers["vertex"].Available)
}

func TestNewReviewService_RequiresCollaborators(t *testing.T) {
	_, err := NewReviewService(Dependencies{})
	assert.Error(t, err)
}

func TestRenderReport(t *testing.T) {
	resp := &models.ReviewResponse{
		Status:    models.StatusPartial,
		SessionID: "s-1",
		Content: models.ContentSummary{
			SourceName:       "guide.pdf",
			ExtractionMethod: models.MethodMixed,
			PageCount:        2,
			Pages: []models.PageResult{
				{PageIndex: 0, Succeeded: true},
				{PageIndex: 1, Succeeded: false},
			},
		},
		Review: &models.ReviewResult{
			AgentResults: []models.AgentResult{
				{Agent: "technical", Succeeded: true, Findings: []models.Finding{
					{Severity: models.SeverityError, Location: "Step 2", Description: "Polarity | reversed", Suggestion: "Swap leads"},
				}},
				{Agent: "brand", Error: "agent brand: context deadline exceeded"},
			},
			Findings: []models.Finding{{Severity: models.SeverityError}},
			Summary:  &models.Summary{Narrative: "Fix the wiring.\n"},
		},
	}

	report := RenderReport(resp)
	assert.True(t, strings.HasPrefix(report, "# Review: guide.pdf\n"))
	assert.Contains(t, report, "- Status: **partial**")
	assert.Contains(t, report, "OCR failed on page(s) 2")
	assert.Contains(t, report, "- Findings: 1 error, 0 warning, 0 info")
	assert.Contains(t, report, "## Summary\n\nFix the wiring.\n")
	assert.Contains(t, report, `| error | Step 2 | Polarity \| reversed | Swap leads |`)
	assert.Contains(t, report, "Agent failed: agent brand: context deadline exceeded")
}

func TestDirReportWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	p, err := DirReportWriter{Dir: dir}.Write(context.Background(), "s-1", "# Review")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "s-1.md"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "# Review", string(data))
}

func TestRetry(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, "s-1/report.md", func() error {
		calls++
		if calls < 3 {
			return errors.New("503")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retry(context.Background(), 2, time.Millisecond, "s-1/report.md", func() error {
		calls++
		return errors.New("503")
	})
	assert.ErrorContains(t, err, "failed after all retries")
	assert.Equal(t, 2, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = retry(ctx, 3, time.Hour, "s-1/report.md", func() error { return errors.New("503") })
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeExecutions struct {
	req *executionspb.CreateExecutionRequest
	err error
}

func (f *fakeExecutions) CreateExecution(_ context.Context, req *executionspb.CreateExecutionRequest, _ ...gax.CallOption) (*executionspb.Execution, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &executionspb.Execution{Name: req.Parent + "/executions/abc"}, nil
}

func TestWorkflowNotifier(t *testing.T) {
	client := &fakeExecutions{}
	n := newWorkflowNotifier(client, "proj", "us-central1", "review-followup")

	name, err := n.Notify(context.Background(), WorkflowArgument{SessionID: "s-1", Status: models.StatusFailed, FindingCount: 0})
	require.NoError(t, err)
	assert.Equal(t, "projects/proj/locations/us-central1/workflows/review-followup/executions/abc", name)
	assert.JSONEq(t, `{"sessionId":"s-1","status":"failed","findingCount":0}`, client.req.Execution.Argument)

	client.err = errors.New("permission denied")
	_, err = n.Notify(context.Background(), WorkflowArgument{SessionID: "s-2"})
	assert.ErrorContains(t, err, "permission denied")
}
