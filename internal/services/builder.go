package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/agents"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/config"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/gcp"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/ingest"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/llm"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/metrics"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/ocr"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/review"
	docstore "github.com/Lllllllleong/engineeringdocumentreview/internal/storage"
)

// BuildOptions selects which collaborators Build constructs.
type BuildOptions struct {
	// Local keeps sessions in memory and reads only local files. No GCS,
	// Firestore or Workflows client is created.
	Local bool
	// ReportDir writes markdown reports to a directory instead of the
	// reports bucket.
	ReportDir string
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// App is a fully wired review service and the manager behind it.
type App struct {
	Service *ReviewService
	Manager *llm.Manager
	closers []func() error
}

// Close releases every client created by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build creates every collaborator described by cfg. Clients created before
// a failure are closed.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	b := &builder{ctx: ctx, cfg: cfg, app: app, logger: logger, vertex: map[string]*gcp.VertexClient{}}

	providers, err := b.providers()
	if err != nil {
		return nil, err
	}
	var cache *llm.ResponseCache
	if cfg.LLM.CacheEnabled {
		cache = llm.NewResponseCache(cfg.LLM.CacheTTL)
	}
	app.Manager = llm.NewManager(providers, llm.ManagerOptions{
		Timeout: cfg.LLM.RequestTimeout,
		Cache:   cache,
		Metrics: opts.Metrics,
		Logger:  logger,
	})

	engine, err := b.ocrEngine()
	if err != nil {
		return nil, err
	}

	deps := Dependencies{Health: app.Manager, Logger: logger}
	source := ingest.MultiSource{Local: ingest.FileSource{}}
	if opts.Local {
		deps.Store = docstore.NewMemoryStore()
	} else {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		app.closers = append(app.closers, storageClient.Close)
		source.GCS = ingest.NewGCSSource(storageClient)

		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP.ProjectID, cfg.GCP.FirestoreDatabase)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, firestoreClient.Close)
		deps.Store = docstore.NewFirestoreStore(firestoreClient, cfg.GCP.FirestoreCollection, logger)

		if cfg.GCP.ReportBucket != "" && opts.ReportDir == "" {
			deps.Reports = NewGCSReportWriter(storageClient, cfg.GCP.ReportBucket)
		}
		if cfg.GCP.WorkflowID != "" {
			executionsClient, err := executions.NewClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
			}
			app.closers = append(app.closers, executionsClient.Close)
			deps.Workflow = NewWorkflowNotifier(executionsClient, cfg.GCP.ProjectID, cfg.GCP.WorkflowLocation, cfg.GCP.WorkflowID)
		}
	}
	if opts.ReportDir != "" {
		deps.Reports = DirReportWriter{Dir: opts.ReportDir}
	}
	deps.Source = source
	deps.Processor = ingest.NewProcessor(source, engine, cfg.OCR, opts.Metrics, logger)

	agentOpts := agents.Options{
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		MaxPromptChars: cfg.Review.MaxPromptChars,
		Logger:         logger,
	}
	if cfg.LLM.Enabled {
		agentOpts.Generator = app.Manager
	}
	list, err := agents.Build(cfg.Review.Agents, agentOpts)
	if err != nil {
		return nil, err
	}
	deps.Reviewer = review.NewOrchestrator(list, review.Options{
		AgentTimeout: cfg.Review.AgentTimeout,
		Concurrency:  cfg.Review.AgentConcurrency,
		Metrics:      opts.Metrics,
		Logger:       logger,
	})

	app.Service, err = NewReviewService(deps)
	if err != nil {
		return nil, err
	}
	logger.Info("Review service initialized.",
		"providers", app.Manager.Chain(),
		"ocrEngine", cfg.OCR.Engine,
		"agents", cfg.Review.Agents,
		"local", opts.Local,
	)
	return app, nil
}

type builder struct {
	ctx    context.Context
	cfg    *config.Config
	app    *App
	logger *slog.Logger
	vertex map[string]*gcp.VertexClient
}

// vertexClient returns one shared client per model.
func (b *builder) vertexClient(model string) (*gcp.VertexClient, error) {
	if vc, ok := b.vertex[model]; ok {
		return vc, nil
	}
	vc, err := gcp.NewVertexClient(b.ctx, b.cfg.GCP.ProjectID, b.cfg.GCP.VertexRegion, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}
	b.app.closers = append(b.app.closers, vc.Close)
	b.vertex[model] = vc
	return vc, nil
}

// providers builds the fallback chain in configured order. A disabled LLM
// yields an empty chain.
func (b *builder) providers() ([]llm.Provider, error) {
	if !b.cfg.LLM.Enabled {
		return nil, nil
	}
	var out []llm.Provider
	for _, name := range b.cfg.Providers.Chain {
		p, ok := b.cfg.Provider(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", config.ErrUnknownProvider, name)
		}
		switch p.Kind {
		case config.KindChat:
			client, err := llm.NewChatClient(name, p.BaseURL, p.APIKey, p.Model, nil)
			if err != nil {
				return nil, err
			}
			out = append(out, llm.NewChatProvider(client))
		case config.KindVertex:
			vc, err := b.vertexClient(p.Model)
			if err != nil {
				return nil, err
			}
			out = append(out, llm.NewVertexProvider(name, vc))
		default:
			return nil, fmt.Errorf("%w: %s: %q", config.ErrUnknownProviderKind, name, p.Kind)
		}
	}
	return out, nil
}

// ocrEngine chains the configured engines in order. It returns nil when no
// engine can be built; OCR pages then become placeholders.
func (b *builder) ocrEngine() (ocr.Engine, error) {
	var engines []ocr.Engine
	for _, name := range b.cfg.OCREngines() {
		engine, err := b.namedOCREngine(name)
		if err != nil {
			return nil, err
		}
		engines = append(engines, engine)
	}
	return ocr.NewChain(engines...), nil
}

func (b *builder) namedOCREngine(name string) (ocr.Engine, error) {
	switch name {
	case config.EngineChat:
		key := b.cfg.OCRCredentials()
		if key == "" {
			b.logger.Warn("No OCR credentials configured, OCR pages will be empty")
			return nil, nil
		}
		endpoint, _ := b.cfg.Provider("mistral")
		client, err := llm.NewChatClient("mistral", endpoint.BaseURL, key, b.cfg.OCR.Model, nil)
		if err != nil {
			return nil, err
		}
		return ocr.NewChatEngine(client, b.cfg.LLM.MaxTokens), nil
	case config.EngineVertex:
		endpoint, _ := b.cfg.Provider("vertex")
		vc, err := b.vertexClient(endpoint.Model)
		if err != nil {
			return nil, err
		}
		return ocr.NewVertexEngine(vc), nil
	case config.EngineTesseract:
		return ocr.NewTesseractEngine()
	default:
		return nil, nil
	}
}
