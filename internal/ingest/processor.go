// Package ingest turns raw documents into NormalizedContent, choosing direct
// text extraction or OCR page by page.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/config"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/metrics"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/ocr"
)

// ErrNoEngine is recorded on OCR pages when no engine is configured.
var ErrNoEngine = errors.New("no OCR engine configured")

// Processor partitions a document, selects a method per page, runs OCR
// concurrently where needed and assembles the result in page order.
type Processor struct {
	source      Source
	partitioner Partitioner
	selector    Selector
	engine      ocr.Engine
	cfg         config.OCRConfig
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewProcessor creates a processor. engine may be nil, in which case every
// page that needs OCR becomes an empty placeholder.
func NewProcessor(source Source, engine ocr.Engine, cfg config.OCRConfig, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Processor{
		source:      source,
		partitioner: FormatPartitioner{Logger: logger},
		selector:    NewSelector(cfg.MinTextChars),
		engine:      engine,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
	}
}

// WithPartitioner replaces the format partitioner.
func (p *Processor) WithPartitioner(part Partitioner) *Processor {
	p.partitioner = part
	return p
}

// Process reads and normalizes one document. Input problems return
// ErrSourceNotFound or ErrUnsupportedFormat; a failed OCR page never fails
// the document.
func (p *Processor) Process(ctx context.Context, source string, forceOCR bool) (*models.NormalizedContent, error) {
	start := time.Now()
	logCtx := p.logger.With("source", source, "forceOcr", forceOCR)

	data, err := p.source.Read(ctx, source)
	if err != nil {
		logCtx.Error("Failed to read source", "error", err)
		return nil, err
	}
	return p.process(ctx, source, data, forceOCR, start, logCtx)
}

// ProcessData normalizes a document whose bytes the caller already holds.
// name is used for format detection.
func (p *Processor) ProcessData(ctx context.Context, name string, data []byte, forceOCR bool) (*models.NormalizedContent, error) {
	return p.process(ctx, name, data, forceOCR, time.Now(), p.logger.With("source", name, "forceOcr", forceOCR))
}

func (p *Processor) process(ctx context.Context, source string, data []byte, forceOCR bool, start time.Time, logCtx *slog.Logger) (*models.NormalizedContent, error) {
	units, format, err := p.partitioner.Partition(ctx, source, data)
	if err != nil {
		logCtx.Error("Failed to partition document", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("format", format, "pageCount", len(units))

	texts := make([]string, len(units))
	results := make([]models.PageResult, len(units))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.Concurrency)
	ocrPages := 0

	for i, unit := range units {
		d := p.selector.Decide(unit, forceOCR)
		results[i] = models.PageResult{PageIndex: i, Method: d.Method, Confidence: d.Confidence}

		if d.Method == models.PageDirectText {
			texts[i] = unit.Text
			results[i].Succeeded = true
			results[i].CharCount = CountTextChars(unit.Text)
			continue
		}

		ocrPages++
		eg.Go(func() error {
			text, err := p.recognize(gctx, unit)
			if err != nil {
				// Page keeps the empty placeholder.
				results[i].Error = err.Error()
				p.metrics.IncrementOCRPage("failed")
				logCtx.Warn("OCR failed for page, using empty placeholder.", "page", i, "error", err)
				return nil
			}
			texts[i] = text
			results[i].Succeeded = true
			results[i].CharCount = CountTextChars(text)
			p.metrics.IncrementOCRPage("succeeded")
			return nil
		})
	}
	_ = eg.Wait()

	content := models.NewNormalizedContent(path.Base(source), format, int64(len(data)), texts, results, time.Since(start))
	logCtx.Info("Document processed.",
		"method", content.Method(),
		"ocrPages", ocrPages,
		"failedPages", content.FailedPages(),
		"duration", content.Duration().String(),
	)
	return content, nil
}

// recognize prepares the page image and runs the engine under the OCR timeout.
func (p *Processor) recognize(ctx context.Context, unit models.DocumentUnit) (string, error) {
	if p.engine == nil {
		return "", ErrNoEngine
	}
	if len(unit.Image) == 0 {
		return "", &ocr.Error{Engine: p.engine.Name(), Kind: ocr.KindMalformedInput, Err: ocr.ErrNoImage}
	}

	img, err := ocr.Prepare(unit.Image, p.cfg.MaxImageDimension)
	if err != nil {
		return "", &ocr.Error{Engine: p.engine.Name(), Kind: ocr.KindMalformedInput, Err: err}
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	text, err := p.engine.Recognize(ctx, ocr.Input{
		PageIndex: unit.PageIndex,
		Image:     img,
		MIMEType:  "image/png",
		Model:     p.cfg.Model,
		DPI:       p.cfg.DPI,
	})
	if err != nil {
		return "", fmt.Errorf("page %d: %w", unit.PageIndex, err)
	}
	return text, nil
}
