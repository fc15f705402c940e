package agents

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

const technicalFocus = `You are specifically focused on TECHNICAL ACCURACY. Review the document for:
1. Technical Errors: Incorrect or misleading procedures, inconsistent part numbers, impossible configurations
2. Safety Issues: Missing safety warnings, procedures that could lead to injury or damage
3. Completeness: Missing steps, unclear sequences, incomplete information
4. Tool Requirements: Missing or incorrect tool specifications or lists
5. Troubleshooting: Inadequate troubleshooting steps or guidance for common issues`

var (
	electricalTerms = []string{"wire", "wiring", "electrical", "power", "voltage", "connect power"}
	safetyTerms     = []string{"danger", "warning", "caution", "safety", "turn off power", "disconnect power", "isolate"}
	actionTerms     = []string{"drill", "screw", "cut", "strip", "connect", "mount", "install"}
	toolTerms       = []string{"screwdriver", "drill bit", "wire stripper", "multimeter", "level", "tools required", "tool list"}
	powerOnTerms    = []string{"connect power", "plug in", "apply power", "power on"}

	// dimension word, optional "of", a number, then whatever follows
	dimensionValue = regexp.MustCompile(`\b(?:diameter|length|width|height|depth|distance|gap|clearance|spacing|thickness)\s+(?:of\s+)?(\d+(?:\.\d+)?)(\s*[a-z"°]*)`)
	lengthUnits    = map[string]bool{
		"mm": true, "cm": true, "m": true, "in": true, "inch": true, "inches": true, "ft": true,
		"feet": true, "foot": true, "meter": true, "meters": true, "millimeter": true, "millimeters": true,
		"gauge": true, "awg": true, `"`: true,
	}
)

// Technical checks safety, completeness and procedure order.
type Technical struct {
	*Base
}

// NewTechnical creates the technical accuracy reviewer.
func NewTechnical(opts Options) *Technical {
	t := &Technical{}
	t.Base = newBase(NameTechnical, "technical", Profile{
		Role:                "Technical Accuracy Reviewer",
		Goal:                "Identify technical errors, safety issues, and completeness problems in installation instructions",
		Backstory:           "You are an experienced field technician with 15+ years installing access control hardware. You have seen every mistake that can cause installation failures, safety issues, or damage to equipment.",
		ConfidenceThreshold: 0.6,
	}, technicalFocus, t.rules, opts)
	return t
}

func (t *Technical) rules(rc *ReviewContext) []models.Finding {
	text := strings.ToLower(rc.Text())
	var out []models.Finding

	if containsAny(text, electricalTerms) && !containsAny(text, safetyTerms) {
		out = append(out, models.Finding{
			Severity:    models.SeverityWarning,
			Category:    "safety",
			Description: "Document contains electrical procedures but lacks adequate safety warnings",
			Location:    "Throughout document",
			Suggestion:  "Add safety warnings about turning off power before electrical work",
			Confidence:  0.9,
		})
	}

	if containsAny(text, actionTerms) && !containsAny(text, toolTerms) {
		out = append(out, models.Finding{
			Severity:    models.SeverityWarning,
			Category:    "tools",
			Description: "Installation procedures mentioned without specifying required tools",
			Location:    "Installation steps",
			Suggestion:  "Add a tools and materials list at the beginning of the document",
			Confidence:  0.7,
		})
	}

	if n := unitlessMeasurements(text); n > 0 {
		out = append(out, models.Finding{
			Severity:    models.SeverityWarning,
			Category:    "measurements",
			Description: fmt.Sprintf("%d measurement(s) found without units specified", n),
			Location:    "Throughout document",
			Suggestion:  "Ensure all measurements include appropriate units (mm, inches, etc.)",
			Confidence:  0.6,
		})
	}

	if powerConnectedEarly(text) {
		out = append(out, models.Finding{
			Severity:    models.SeverityError,
			Category:    "sequence",
			Description: "Power connection appears early in instructions, a potential safety hazard",
			Location:    "Installation sequence",
			Suggestion:  "Move power connection to the final step after all other connections are complete",
			Confidence:  0.8,
		})
	}
	return out
}

func unitlessMeasurements(text string) int {
	n := 0
	for _, m := range dimensionValue.FindAllStringSubmatch(text, -1) {
		if !lengthUnits[strings.TrimSpace(m[2])] {
			n++
		}
	}
	return n
}

// powerConnectedEarly reports a power-on step within the first three sentences.
func powerConnectedEarly(text string) bool {
	sentences := strings.Split(text, ".")
	if len(sentences) > 3 {
		sentences = sentences[:3]
	}
	for _, s := range sentences {
		if containsAny(s, powerOnTerms) {
			return true
		}
	}
	return false
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
