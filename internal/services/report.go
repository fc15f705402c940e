package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/gcp"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// ReportWriter stores a rendered markdown report and returns its location.
type ReportWriter interface {
	Write(ctx context.Context, sessionID, report string) (string, error)
}

// GCSReportWriter writes reports to <bucket>/<sessionId>/report.md.
type GCSReportWriter struct {
	client     *storage.Client
	bucket     string
	maxRetries int
	backoff    time.Duration
}

func NewGCSReportWriter(client *storage.Client, bucket string) *GCSReportWriter {
	return &GCSReportWriter{client: client, bucket: bucket, maxRetries: 4, backoff: time.Second}
}

// Write uploads the report, retrying with exponential backoff.
func (w *GCSReportWriter) Write(ctx context.Context, sessionID, report string) (string, error) {
	objectName := fmt.Sprintf("%s/report.md", sessionID)
	err := retry(ctx, w.maxRetries, w.backoff, objectName, func() error {
		return gcp.SaveToGCSAtomically(ctx, w.client.Bucket(w.bucket), objectName, "text/markdown", report)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", w.bucket, objectName), nil
}

func retry(ctx context.Context, maxRetries int, backoff time.Duration, object string, fn func() error) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		slog.Warn("Upload failed, will retry.",
			"gcsObject", object,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", lastErr,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}

// DirReportWriter writes reports to <dir>/<sessionId>.md.
type DirReportWriter struct {
	Dir string
}

func (w DirReportWriter) Write(_ context.Context, sessionID, report string) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	p := filepath.Join(w.Dir, sessionID+".md")
	if err := os.WriteFile(p, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return p, nil
}

// RenderReport formats a review as markdown, findings grouped by agent in
// run order.
func RenderReport(resp *models.ReviewResponse) string {
	var b strings.Builder
	c := resp.Content

	fmt.Fprintf(&b, "# Review: %s\n\n", c.SourceName)
	fmt.Fprintf(&b, "- Session: `%s`\n", resp.SessionID)
	fmt.Fprintf(&b, "- Status: **%s**\n", resp.Status)
	fmt.Fprintf(&b, "- Extraction: %s, %d page(s)", c.ExtractionMethod, c.PageCount)
	if failed := failedPages(c.Pages); len(failed) > 0 {
		fmt.Fprintf(&b, ", OCR failed on page(s) %s", joinInts(failed))
	}
	b.WriteString("\n")

	r := resp.Review
	if r == nil {
		return b.String()
	}
	counts := r.CountBySeverity()
	fmt.Fprintf(&b, "- Findings: %d error, %d warning, %d info\n",
		counts[models.SeverityError], counts[models.SeverityWarning], counts[models.SeverityInfo])

	if r.Summary != nil {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", strings.TrimSpace(r.Summary.Narrative))
	}

	for _, ar := range r.AgentResults {
		if !ar.Succeeded {
			fmt.Fprintf(&b, "\n## %s\n\nAgent failed: %s\n", ar.Agent, ar.Error)
			continue
		}
		if len(ar.Findings) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", ar.Agent)
		b.WriteString("| Severity | Location | Finding | Suggestion |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, f := range ar.Findings {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", f.Severity, cell(f.Location), cell(f.Description), cell(f.Suggestion))
		}
	}
	return b.String()
}

func failedPages(pages []models.PageResult) []int {
	var out []int
	for _, p := range pages {
		if !p.Succeeded {
			out = append(out, p.PageIndex+1)
		}
	}
	return out
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

// cell escapes a value for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
