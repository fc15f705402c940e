// Package services wires ingestion, review and persistence into the
// operations exposed by the cmd entry points.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/ingest"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/llm"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/storage"
)

// ErrInvalidRequest is returned for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid review request")

// DocumentProcessor normalizes document bytes.
type DocumentProcessor interface {
	ProcessData(ctx context.Context, name string, data []byte, forceOCR bool) (*models.NormalizedContent, error)
}

// Reviewer runs agents over normalized content.
type Reviewer interface {
	StartReview(ctx context.Context, content *models.NormalizedContent, sessionID string, agentNames []string) *models.ReviewResult
}

// HealthChecker probes LLM providers.
type HealthChecker interface {
	TestConnection(ctx context.Context, provider string) map[string]llm.ConnectionStatus
}

// Dependencies are the collaborators of a ReviewService. Reports and
// Workflow are optional.
type Dependencies struct {
	Source    ingest.Source
	Processor DocumentProcessor
	Reviewer  Reviewer
	Store     storage.Store
	Health    HealthChecker
	Reports   ReportWriter
	Workflow  Notifier
	Logger    *slog.Logger
}

// ReviewService runs one document through ingestion, review and persistence.
type ReviewService struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewReviewService creates a service. Source, Processor, Reviewer and Store
// are required.
func NewReviewService(deps Dependencies) (*ReviewService, error) {
	if deps.Source == nil || deps.Processor == nil || deps.Reviewer == nil || deps.Store == nil {
		return nil, fmt.Errorf("review service requires a source, processor, reviewer and store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{deps: deps, logger: logger}, nil
}

// Review reads, normalizes and reviews the document named by req.SourceURI.
// Input errors are returned and leave the session failed; persistence,
// report and workflow failures are logged and never returned.
func (s *ReviewService) Review(ctx context.Context, req models.ReviewRequest) (*models.ReviewResponse, error) {
	if req.SourceURI == "" {
		return nil, fmt.Errorf("%w: sourceUri is required", ErrInvalidRequest)
	}
	logCtx := s.logger.With("sourceUri", req.SourceURI, "executionId", req.ExecutionID)

	data, err := s.deps.Source.Read(ctx, req.SourceURI)
	if err != nil {
		logCtx.Error("Failed to read source document", "error", err)
		return nil, err
	}
	return s.review(ctx, logCtx, req, data, hashBytes(data))
}

// ReviewUpload reviews a newly finalized object. A file whose hash already
// has a session is skipped and reported as (nil, nil).
func (s *ReviewService) ReviewUpload(ctx context.Context, e models.GCSEvent) (*models.ReviewResponse, error) {
	uri := fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name)
	logCtx := s.logger.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	data, err := s.deps.Source.Read(ctx, uri)
	if err != nil {
		logCtx.Error("Failed to read uploaded object", "error", err)
		return nil, err
	}
	fileHash := hashBytes(data)
	logCtx = logCtx.With("fileHash", fileHash)

	existing, err := s.deps.Store.FindByHash(ctx, fileHash)
	switch {
	case err == nil:
		logCtx.Info("Duplicate file detected. Skipping.", "existingSessionId", existing.ID)
		return nil, nil
	case !errors.Is(err, storage.ErrNotFound):
		logCtx.Warn("Failed to check for duplicate, reviewing anyway", "error", err)
	}
	return s.review(ctx, logCtx, models.ReviewRequest{SourceURI: uri}, data, fileHash)
}

func (s *ReviewService) review(ctx context.Context, logCtx *slog.Logger, req models.ReviewRequest, data []byte, fileHash string) (*models.ReviewResponse, error) {
	sessionID, persisted := s.createSession(ctx, logCtx, req, fileHash)
	logCtx = logCtx.With("sessionId", sessionID)

	content, err := s.deps.Processor.ProcessData(ctx, req.SourceURI, data, req.ForceOCR)
	if err != nil {
		return nil, s.handleError(ctx, logCtx, sessionID, persisted, "failed to process document", err)
	}
	if persisted {
		update := storage.SessionUpdate{
			ProcessingMethod: string(content.Method()),
			PageCount:        content.PageCount(),
			FailedPages:      content.FailedPages(),
		}
		if err := s.deps.Store.UpdateSession(ctx, sessionID, update); err != nil {
			logCtx.Warn("Failed to record processing metadata", "error", err)
		}
	}

	result := s.deps.Reviewer.StartReview(ctx, content, sessionID, req.Agents)
	resp := &models.ReviewResponse{
		Status:    result.Status,
		SessionID: sessionID,
		Content:   content.Summary(),
		Review:    result,
	}

	if persisted {
		if err := s.deps.Store.SaveReview(ctx, sessionID, result); err != nil {
			logCtx.Error("Failed to persist review", "error", err)
		}
	}
	if s.deps.Reports != nil {
		uri, err := s.deps.Reports.Write(ctx, sessionID, RenderReport(resp))
		if err != nil {
			logCtx.Error("Failed to write review report", "error", err)
		} else {
			resp.ReportURI = uri
		}
	}
	if s.deps.Workflow != nil {
		arg := WorkflowArgument{SessionID: sessionID, Status: result.Status, FindingCount: len(result.Findings)}
		if name, err := s.deps.Workflow.Notify(ctx, arg); err != nil {
			logCtx.Error("Failed to trigger workflow execution", "error", err)
		} else {
			logCtx.Info("Workflow triggered.", "execution", name)
		}
	}

	logCtx.Info("Review request complete.", "status", result.Status, "findingCount", len(result.Findings))
	return resp, nil
}

// createSession stores the session. When the store is unavailable the run
// continues under a locally generated ID.
func (s *ReviewService) createSession(ctx context.Context, logCtx *slog.Logger, req models.ReviewRequest, fileHash string) (string, bool) {
	session := &models.ReviewSession{
		FileHash:            fileHash,
		OriginalFilename:    path.Base(req.SourceURI),
		SourceURI:           req.SourceURI,
		UserID:              req.UserID,
		Status:              models.SessionProcessing,
		WorkflowExecutionID: req.ExecutionID,
		CreatedAt:           time.Now(),
	}
	id, err := s.deps.Store.CreateSession(ctx, session)
	if err != nil {
		id = uuid.NewString()
		logCtx.Warn("Failed to create review session, continuing with local ID", "error", err, "sessionId", id)
		return id, false
	}
	logCtx.Info("Created review session.", "sessionId", id)
	return id, true
}

func (s *ReviewService) handleError(ctx context.Context, logCtx *slog.Logger, sessionID string, persisted bool, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	if persisted {
		update := storage.SessionUpdate{Status: models.SessionFailed, ErrorDetails: fmt.Sprintf("%s: %v", message, originalErr)}
		if err := s.deps.Store.UpdateSession(ctx, sessionID, update); err != nil {
			logCtx.Error("CRITICAL: Failed to mark session failed after a processing error.", "updateError", err)
		}
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

// ProviderHealth probes every provider, or only the named one.
func (s *ReviewService) ProviderHealth(ctx context.Context, provider string) models.ProviderHealthResponse {
	out := models.ProviderHealthResponse{Providers: map[string]models.ProviderStatus{}}
	if s.deps.Health == nil {
		return out
	}
	for name, st := range s.deps.Health.TestConnection(ctx, provider) {
		out.Providers[name] = models.ProviderStatus{
			Available:    st.Available,
			Latency:      st.Latency.String(),
			SampleOutput: st.SampleOutput,
			Error:        st.Error,
		}
	}
	return out
}

// Session returns a stored session with its findings.
func (s *ReviewService) Session(ctx context.Context, id string) (*models.ReviewSession, []models.Finding, error) {
	session, err := s.deps.Store.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	findings, err := s.deps.Store.Findings(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return session, findings, nil
}

// RecentSessions lists stored sessions newest first.
func (s *ReviewService) RecentSessions(ctx context.Context, limit int) ([]*models.ReviewSession, error) {
	return s.deps.Store.RecentSessions(ctx, limit)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
