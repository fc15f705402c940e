// Package agents implements the specialized document reviewers. Each agent
// asks the LLM manager first and falls back to deterministic rules when no
// usable AI answer is available.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// Agent names as used in configuration and results.
const (
	NameTechnical  = "technical"
	NameFormatting = "formatting"
	NameBrand      = "brand"
	NameDiagram    = "diagram"
	NameSummary    = "summary"
)

// BaseSystemPrompt frames every review request.
const BaseSystemPrompt = `You are an expert technical writing reviewer specializing in installation
instructions for mechanical and electronic access control hardware.
Your task is to analyze documents and provide constructive feedback
to improve clarity, accuracy, and usability.

Always provide specific, actionable feedback with clear locations
in the document where the issues occur.
Focus on issues that would impact a technician trying to install the product
using the provided instructions.`

const findingsFormat = `For each issue found, provide:
- Severity: "error" (blocks or hinders completion), "warning" (could cause problems) or "info" (improvement suggestion)
- Location: Specific page or section where the issue occurs
- Description: Clear explanation of the issue
- Suggestion: Specific recommendation to fix the issue
- Confidence: optional number between 0 and 1

Respond in this exact format:
FINDINGS:
[Severity] - [Location]: [Description]
Suggestion: [Specific recommendation]
Confidence: [0.0-1.0]

---
[Repeat for each finding]`

// Agent reviews one document.
type Agent interface {
	Name() string
	Review(ctx context.Context, rc *ReviewContext) ([]models.Finding, error)
}

// Generator is the slice of the LLM manager the agents depend on.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float32, provider string) (string, error)
}

// Profile describes an agent persona.
type Profile struct {
	Role                string
	Goal                string
	Backstory           string
	ConfidenceThreshold float64
}

// Options are shared by every agent.
type Options struct {
	// Generator is nil in rule-based-only mode.
	Generator      Generator
	Provider       string
	MaxTokens      int
	Temperature    float32
	MaxPromptChars int
	Logger         *slog.Logger
	Now            func() time.Time
}

// ReviewContext is a read-only view of the document handed to every agent.
type ReviewContext struct {
	sessionID  string
	text       string
	pages      []string
	sourceName string
	format     string
	method     models.ExtractionMethod
	prior      []models.Finding
}

// NewReviewContext creates a context for content. prior holds the findings
// of earlier agents and is empty for first-pass agents.
func NewReviewContext(sessionID string, content *models.NormalizedContent, prior []models.Finding) *ReviewContext {
	rc := &ReviewContext{
		sessionID: sessionID,
		prior:     append([]models.Finding(nil), prior...),
	}
	if content != nil {
		rc.text = content.Text()
		rc.pages = content.Pages()
		rc.sourceName = content.SourceName()
		rc.format = content.Format()
		rc.method = content.Method()
	}
	return rc
}

func (c *ReviewContext) SessionID() string { return c.sessionID }
func (c *ReviewContext) Text() string { return c.text }
func (c *ReviewContext) Pages() []string { return append([]string(nil), c.pages...) }
func (c *ReviewContext) PageCount() int { return len(c.pages) }
func (c *ReviewContext) SourceName() string { return c.sourceName }
func (c *ReviewContext) Format() string { return c.format }
func (c *ReviewContext) Method() models.ExtractionMethod { return c.method }
func (c *ReviewContext) PriorFindings() []models.Finding { return append([]models.Finding(nil), c.prior...) }

// WithPriorFindings returns a copy of the context carrying findings.
func (c *ReviewContext) WithPriorFindings(findings []models.Finding) *ReviewContext {
	cp := *c
	cp.pages = append([]string(nil), c.pages...)
	cp.prior = append([]models.Finding(nil), findings...)
	return &cp
}

// ruleSet produces findings from the document without calling a model.
// Returned findings only need Severity, Category, Description, Location,
// Suggestion and Confidence.
type ruleSet func(rc *ReviewContext) []models.Finding

// Base carries the behavior shared by the document agents.
type Base struct {
	name     string
	category string
	profile  Profile
	focus    string
	rules    ruleSet
	opts     Options
	logger   *slog.Logger
}

func newBase(name, category string, profile Profile, focus string, rules ruleSet, opts Options) *Base {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Base{
		name:     name,
		category: category,
		profile:  profile,
		focus:    focus,
		rules:    rules,
		opts:     opts,
		logger:   logger.With("agent", name),
	}
}

func (b *Base) Name() string { return b.name }

// Profile returns the agent persona.
func (b *Base) Profile() Profile { return b.profile }

func (b *Base) Review(ctx context.Context, rc *ReviewContext) ([]models.Finding, error) {
	return b.Run(ctx, rc)
}

// Run asks the generator for findings and filters them by the confidence
// threshold. Any generator failure or unparseable answer switches to the
// rule set, whose result is never empty. An expired deadline still gets the
// rule result; only cancellation is returned as an error.
func (b *Base) Run(ctx context.Context, rc *ReviewContext) ([]models.Finding, error) {
	logCtx := b.logger.With("sessionId", rc.SessionID())

	if b.opts.Generator != nil {
		aiCtx, cancel := withRuleHeadroom(ctx)
		findings, err := b.aiReview(aiCtx, rc)
		cancel()
		if err == nil {
			logCtx.Info("AI review completed.", "findingCount", len(findings))
			return findings, nil
		}
		logCtx.Warn("AI review unavailable, using rule-based checks", "error", err)
	}
	if err := canceled(ctx); err != nil {
		return nil, fmt.Errorf("agent %s: %w", b.name, err)
	}

	findings := b.ruleReview(rc)
	logCtx.Info("Rule-based review completed.", "findingCount", len(findings))
	return findings, nil
}

func (b *Base) aiReview(ctx context.Context, rc *ReviewContext) ([]models.Finding, error) {
	response, err := b.opts.Generator.Generate(ctx, b.prompt(rc), b.opts.MaxTokens, b.opts.Temperature, b.opts.Provider)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseFindings(response)
	if err != nil {
		return nil, err
	}

	findings := make([]models.Finding, 0, len(parsed))
	for _, p := range parsed {
		if p.Confidence < b.profile.ConfidenceThreshold {
			continue
		}
		f := p
		if f.Category == "" {
			f.Category = b.category
		}
		findings = append(findings, b.stamp(rc, f, models.SourceAI))
	}
	return findings, nil
}

func (b *Base) ruleReview(rc *ReviewContext) []models.Finding {
	var raw []models.Finding
	if b.rules != nil {
		raw = b.rules(rc)
	}
	if len(raw) == 0 {
		raw = []models.Finding{{
			Severity:    models.SeverityInfo,
			Category:    b.category,
			Description: "Rule-based checks found no issues",
			Location:    "Document",
			Confidence:  1,
		}}
	}
	findings := make([]models.Finding, len(raw))
	for i, f := range raw {
		findings[i] = b.stamp(rc, f, models.SourceRules)
	}
	return findings
}

func (b *Base) stamp(rc *ReviewContext, f models.Finding, source string) models.Finding {
	f.SessionID = rc.SessionID()
	f.AgentName = b.name
	f.Source = source
	f.CreatedAt = b.opts.Now()
	return f
}

func (b *Base) prompt(rc *ReviewContext) string {
	var sb strings.Builder
	sb.WriteString(BaseSystemPrompt)
	fmt.Fprintf(&sb, "\n\nRole: %s\nGoal: %s\nBackstory: %s\n\n", b.profile.Role, b.profile.Goal, b.profile.Backstory)
	sb.WriteString(b.focus)
	sb.WriteString("\n\n")
	sb.WriteString(findingsFormat)
	sb.WriteString("\n\nDocument to review:\n")
	sb.WriteString(truncate(rc.Text(), b.opts.MaxPromptChars))
	return sb.String()
}

// maxRuleHeadroom caps the time reserved after the AI call for the rule path.
const maxRuleHeadroom = 5 * time.Second

// withRuleHeadroom derives the context for the AI call. When ctx has a
// deadline the AI call ends a tenth of the remaining time early, so the rule
// path still finishes inside the deadline.
func withRuleHeadroom(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	headroom := min(time.Until(deadline)/10, maxRuleHeadroom)
	return context.WithDeadline(ctx, deadline.Add(-headroom))
}

// canceled returns ctx's error when ctx was cancelled. A deadline is not
// treated as cancellation.
func canceled(ctx context.Context) error {
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// truncate keeps at most n runes. n <= 0 disables the limit.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
