// Package review runs the selected agents against a document and aggregates
// their findings into one ReviewResult.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/agents"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/metrics"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// Options configures an Orchestrator.
type Options struct {
	// AgentTimeout bounds each agent. Zero means no bound.
	AgentTimeout time.Duration
	Concurrency  int
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Orchestrator runs agents concurrently and the summary agent last.
type Orchestrator struct {
	agents []agents.Agent
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

// NewOrchestrator creates an orchestrator over the configured agents. Their
// order is the result order.
func NewOrchestrator(list []agents.Agent, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		agents: append([]agents.Agent(nil), list...),
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("github.com/Lllllllleong/engineeringdocumentreview/internal/review"),
	}
}

// AgentNames lists the configured agents.
func (o *Orchestrator) AgentNames() []string { return names(o.agents) }

// StartReview runs the agents named in agentNames (all when empty) and
// returns the frozen result. It never fails: an agent that errors, panics or
// times out contributes zero findings.
func (o *Orchestrator) StartReview(ctx context.Context, content *models.NormalizedContent, sessionID string, agentNames []string) *models.ReviewResult {
	logCtx := o.logger.With("sessionId", sessionID)
	ctx, span := o.tracer.Start(ctx, "review.StartReview", trace.WithAttributes(
		attribute.String("review.session_id", sessionID),
	))
	defer span.End()

	run := NewRun()
	_ = run.Start()

	selected := o.selectAgents(agentNames, logCtx)
	var (
		workers    []int
		summaryIdx = -1
	)
	for i, a := range selected {
		if _, ok := a.(agents.Summarizer); ok && summaryIdx < 0 {
			summaryIdx = i
			continue
		}
		workers = append(workers, i)
	}
	logCtx.Info("Starting review.", "agents", names(selected))

	rc := agents.NewReviewContext(sessionID, content, nil)
	results := make([]models.AgentResult, len(selected))

	eg := new(errgroup.Group)
	eg.SetLimit(o.opts.Concurrency)
	for _, i := range workers {
		a := selected[i]
		eg.Go(func() error {
			start := time.Now()
			findings, err := guard(ctx, o.opts.AgentTimeout, a.Name(), func(actx context.Context) ([]models.Finding, error) {
				return a.Review(actx, rc)
			})
			results[i] = o.agentResult(a.Name(), findings, err, time.Since(start), logCtx)
			return nil
		})
	}
	_ = eg.Wait()

	result := &models.ReviewResult{SessionID: sessionID, Findings: []models.Finding{}}
	firstPass := make([]models.AgentResult, 0, len(workers))
	for _, i := range workers {
		firstPass = append(firstPass, results[i])
		result.Findings = append(result.Findings, results[i].Findings...)
	}

	if summaryIdx >= 0 {
		s := selected[summaryIdx].(agents.Summarizer)
		start := time.Now()
		summary, err := guard(ctx, o.opts.AgentTimeout, s.Name(), func(actx context.Context) (*models.Summary, error) {
			return s.Summarize(actx, rc.WithPriorFindings(result.Findings))
		})
		results[summaryIdx] = o.agentResult(s.Name(), nil, err, time.Since(start), logCtx)
		if err == nil {
			result.Summary = summary
		}
	}

	status := ComputeStatus(firstPass)
	_ = run.Finish(status)

	result.AgentResults = results
	result.Status = status
	result.TotalDuration = run.Duration()

	o.opts.Metrics.IncrementReview(string(status))
	span.SetAttributes(attribute.String("review.status", string(status)), attribute.Int("review.findings", len(result.Findings)))
	logCtx.Info("Review completed.",
		"status", status,
		"findingCount", len(result.Findings),
		"duration", result.TotalDuration.String(),
	)
	return result
}

// selectAgents keeps configured order and skips unknown or repeated names.
func (o *Orchestrator) selectAgents(requested []string, logCtx *slog.Logger) []agents.Agent {
	if len(requested) == 0 {
		return append([]agents.Agent(nil), o.agents...)
	}
	want := make(map[string]bool, len(requested))
	for _, n := range requested {
		want[n] = true
	}
	known := make(map[string]bool, len(o.agents))
	var out []agents.Agent
	for _, a := range o.agents {
		known[a.Name()] = true
		if want[a.Name()] {
			out = append(out, a)
			delete(want, a.Name())
		}
	}
	for _, n := range requested {
		if !known[n] {
			logCtx.Warn("Unknown agent requested, skipping", "agent", n)
		}
	}
	return out
}

func (o *Orchestrator) agentResult(name string, findings []models.Finding, err error, d time.Duration, logCtx *slog.Logger) models.AgentResult {
	res := models.AgentResult{Agent: name, Findings: []models.Finding{}, Duration: d}
	if err != nil {
		res.Error = err.Error()
		o.opts.Metrics.IncrementAgent(name, "failed")
		logCtx.Error("Agent review failed", "agent", name, "error", err)
		return res
	}
	res.Succeeded = true
	if findings != nil {
		res.Findings = findings
	}
	o.opts.Metrics.IncrementAgent(name, "succeeded")
	logCtx.Info("Agent completed review.", "agent", name, "findingCount", len(findings), "duration", d.String())
	return res
}

// maxGrace caps how long guard waits past the agent deadline.
const maxGrace = 5 * time.Second

// guard runs fn under its own timeout. fn sees the deadline and gets a grace
// period after it to return its fallback result. A panic, a cancelled parent
// or an fn still running after the grace period is returned as an error;
// fn's goroutine is abandoned if it ignores ctx.
func guard[T any](parent context.Context, timeout time.Duration, name string, fn func(context.Context) (T, error)) (T, error) {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		overrun <-chan time.Time
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
		t := time.NewTimer(timeout + min(timeout/4, maxGrace))
		defer t.Stop()
		overrun = t.C
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("agent %s panicked: %v", name, r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-parent.Done():
		return zero, fmt.Errorf("agent %s: %w", name, parent.Err())
	case <-overrun:
		return zero, fmt.Errorf("agent %s: %w", name, context.DeadlineExceeded)
	}
}

func names(list []agents.Agent) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Name()
	}
	return out
}
