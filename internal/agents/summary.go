package agents

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

const summaryPrompt = `You are a senior technical writing reviewer tasked with creating a comprehensive summary of findings from multiple specialized reviewers.

Your task is to:
1. Prioritize the most critical issues that would prevent successful installation
2. Group related findings to avoid redundancy
3. Provide an executive summary with key recommendations
4. Suggest an implementation order for fixes

Create the report in this format:

EXECUTIVE SUMMARY:
[2-3 sentences highlighting the most critical issues and overall document quality]

CRITICAL ISSUES (Must Fix):
HIGH PRIORITY (Should Fix):
IMPROVEMENTS (Could Fix):
IMPLEMENTATION RECOMMENDATIONS:
OVERALL ASSESSMENT:

Findings from all reviewers:
`

// Summarizer consolidates the findings of the other agents. It runs after
// every other selected agent has finished.
type Summarizer interface {
	Agent
	Summarize(ctx context.Context, rc *ReviewContext) (*models.Summary, error)
}

// Summary writes the consolidated narrative and priority list.
type Summary struct {
	opts   Options
	logger *slog.Logger
}

// NewSummary creates the summary agent.
func NewSummary(opts Options) *Summary {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Summary{opts: opts, logger: logger.With("agent", NameSummary)}
}

func (s *Summary) Name() string { return NameSummary }

// Review contributes no findings of its own.
func (s *Summary) Review(context.Context, *ReviewContext) ([]models.Finding, error) {
	return nil, nil
}

// Summarize builds the summary from rc's prior findings. The narrative comes
// from the generator when it answers and from counts otherwise; the priority
// order is always computed locally.
func (s *Summary) Summarize(ctx context.Context, rc *ReviewContext) (*models.Summary, error) {
	prior := rc.PriorFindings()
	logCtx := s.logger.With("sessionId", rc.SessionID(), "findingCount", len(prior))
	summary := &models.Summary{Priorities: Prioritize(prior)}

	if s.opts.Generator != nil {
		prompt := truncate(summaryPrompt+formatFindings(prior), s.opts.MaxPromptChars)
		aiCtx, cancel := withRuleHeadroom(ctx)
		text, err := s.opts.Generator.Generate(aiCtx, prompt, s.opts.MaxTokens, s.opts.Temperature, s.opts.Provider)
		cancel()
		if err == nil && strings.TrimSpace(text) != "" {
			summary.Narrative = strings.TrimSpace(text)
			summary.Source = models.SourceAI
			logCtx.Info("AI summary completed.")
			return summary, nil
		}
		logCtx.Warn("AI summary unavailable, using rule-based summary", "error", err)
	}
	if err := canceled(ctx); err != nil {
		return nil, fmt.Errorf("agent %s: %w", NameSummary, err)
	}

	summary.Narrative = RuleNarrative(prior)
	summary.Source = models.SourceRules
	logCtx.Info("Rule-based summary completed.")
	return summary, nil
}

// Prioritize orders findings by severity, then confidence descending, then
// original position.
func Prioritize(findings []models.Finding) []models.Finding {
	out := slices.Clone(findings)
	slices.SortStableFunc(out, func(a, b models.Finding) int {
		if d := a.Severity.Rank() - b.Severity.Rank(); d != 0 {
			return d
		}
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	return out
}

// RuleNarrative describes findings by severity counts and per-agent totals.
func RuleNarrative(findings []models.Finding) string {
	if len(findings) == 0 {
		return "No issues found in the document. The content appears to be technically sound."
	}

	counts := map[models.Severity]int{}
	var agents []string
	perAgent := map[string]int{}
	for _, f := range findings {
		counts[f.Severity]++
		if _, ok := perAgent[f.AgentName]; !ok {
			agents = append(agents, f.AgentName)
		}
		perAgent[f.AgentName]++
	}

	var parts []string
	if n := counts[models.SeverityError]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d critical issue(s) that must be fixed", n))
	}
	if n := counts[models.SeverityWarning]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s) that should be addressed", n))
	}
	if n := counts[models.SeverityInfo]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d suggestion(s) for improvement", n))
	}

	breakdown := make([]string, len(agents))
	for i, a := range agents {
		breakdown[i] = fmt.Sprintf("%s: %d findings", a, perAgent[a])
	}
	return fmt.Sprintf("Review found: %s. Agent breakdown: %s.", strings.Join(parts, ", "), strings.Join(breakdown, ", "))
}

func formatFindings(findings []models.Finding) string {
	var sb strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&sb, "- [%s] %s / %s: %s", f.Severity, f.AgentName, f.Location, f.Description)
		if f.Suggestion != "" {
			fmt.Fprintf(&sb, " (suggestion: %s)", f.Suggestion)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
