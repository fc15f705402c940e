package agents

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// DefaultAIConfidence is assigned to AI findings that state no confidence.
const DefaultAIConfidence = 0.8

// ErrUnparseable means a model answer contained no recognizable findings section.
var ErrUnparseable = errors.New("response does not follow the FINDINGS format")

var (
	findingSeparator = regexp.MustCompile(`(?m)^\s*-{3,}\s*$|\n{3,}`)
	findingHeader    = regexp.MustCompile(`^\s*(?:\d+[.)]\s*)?\*{0,2}\[?([A-Za-z]+)\]?\*{0,2}\s*[-–:]\s*(.+)$`)
)

// ParseFindings reads the FINDINGS block format:
//
//	FINDINGS:
//	[Severity] - [Location]: [Description]
//	Suggestion: ...
//	Confidence: 0.x
//	---
//
// A response with the FINDINGS marker but no entries is a valid empty result.
// A response with neither the marker nor any entry is ErrUnparseable.
// Category is left empty for the caller to fill in.
func ParseFindings(response string) ([]models.Finding, error) {
	body := response
	marker := false
	if i := strings.Index(strings.ToUpper(body), "FINDINGS:"); i >= 0 {
		body = body[i+len("FINDINGS:"):]
		marker = true
	}

	var findings []models.Finding
	for _, block := range findingSeparator.Split(body, -1) {
		f, ok := parseBlock(block)
		if ok {
			findings = append(findings, f)
		}
	}
	if len(findings) == 0 && !marker {
		return nil, ErrUnparseable
	}
	return findings, nil
}

func parseBlock(block string) (models.Finding, bool) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	if len(lines) == 0 {
		return models.Finding{}, false
	}

	m := findingHeader.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if m == nil || !knownSeverity(m[1]) {
		return models.Finding{}, false
	}

	f := models.Finding{
		Severity:   models.ParseSeverity(m[1]),
		Location:   "Document",
		Confidence: DefaultAIConfidence,
	}
	rest := strings.TrimSpace(m[2])
	if loc, desc, ok := strings.Cut(rest, ":"); ok && strings.TrimSpace(desc) != "" {
		f.Location = cleanField(loc)
		f.Description = strings.TrimSpace(desc)
	} else {
		f.Description = rest
	}
	if f.Description == "" {
		return models.Finding{}, false
	}

	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.Trim(key, "-* ")) {
		case "suggestion":
			f.Suggestion = strings.TrimSpace(value)
		case "confidence":
			if c, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				f.Confidence = min(max(c, 0), 1)
			}
		case "category":
			f.Category = strings.ToLower(strings.TrimSpace(value))
		}
	}
	return f, true
}

func knownSeverity(s string) bool {
	switch strings.ToLower(s) {
	case "error", "warning", "info", "critical", "high", "medium", "low":
		return true
	}
	return false
}

func cleanField(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "[]*"))
}
