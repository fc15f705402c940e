package agents

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

const diagramFocus = `You are specifically focused on DIAGRAMS and VISUAL ELEMENTS. Review the document for:
1. Diagram Accuracy: Incorrect or confusing wiring, mislabeled connections, missing components
2. Visual Clarity: Illegible text, unclear symbols
3. Diagram-Text Alignment: Diagrams that do not match text descriptions
4. Missing Visuals: Complex procedures lacking helpful diagrams
5. Fire Alarm and Lock Control: Fail-safe configuration, relay wiring, polarity`

var (
	figureRef     = regexp.MustCompile(`(?i)\b(?:figure|fig\.|diagram)\s+(\d+)`)
	figureCaption = regexp.MustCompile(`(?im)^\s*(?:figure|fig\.|diagram)\s+(\d+)\s*[:.\-–]`)
	dcVoltage     = regexp.MustCompile(`\b(?:12|24)\s*v\s*dc\b`)
)

// Diagram checks wiring guidance and figure references.
type Diagram struct {
	*Base
}

// NewDiagram creates the diagram and wiring reviewer.
func NewDiagram(opts Options) *Diagram {
	d := &Diagram{}
	d.Base = newBase(NameDiagram, "diagram", Profile{
		Role:                "Diagram and Visual Reviewer",
		Goal:                "Identify wiring errors, unclear visuals, and safety issues in diagrams",
		Backstory:           "You are an electrical engineer who reviews access control wiring diagrams and knows where installers misread them.",
		ConfidenceThreshold: 0.7,
	}, diagramFocus, d.rules, opts)
	return d
}

func (d *Diagram) rules(rc *ReviewContext) []models.Finding {
	src := rc.Text()
	text := strings.ToLower(src)
	var out []models.Finding

	mentionsWiring := strings.Contains(text, "wire") || strings.Contains(text, "connect")
	if mentionsWiring && !strings.Contains(text, "diagram") && !strings.Contains(text, "figure") {
		out = append(out, models.Finding{
			Severity:    models.SeverityWarning,
			Category:    "diagram",
			Description: "Wiring instructions provided without diagram reference",
			Location:    "Document text",
			Suggestion:  "Add reference to wiring diagram for visual guidance",
			Confidence:  0.7,
		})
	}

	for _, ref := range orphanFigures(src) {
		out = append(out, models.Finding{
			Severity:    models.SeverityInfo,
			Category:    "diagram",
			Description: fmt.Sprintf("Reference to figure %s has no matching figure caption", ref),
			Location:    "Figure " + ref,
			Suggestion:  "Add the figure with a numbered caption or correct the reference",
			Confidence:  0.6,
		})
	}

	failSafe := strings.Contains(text, "fail safe") || strings.Contains(text, "fail-safe")
	if strings.Contains(text, "fire alarm") && !failSafe && !strings.Contains(text, "normally closed") {
		out = append(out, models.Finding{
			Severity:    models.SeverityError,
			Category:    "safety",
			Description: "Fire alarm integration mentioned without fail-safe configuration details",
			Location:    "Fire alarm section",
			Suggestion:  "Specify fail-safe wiring configuration for fire alarm integration",
			Confidence:  0.8,
		})
	}

	if dcVoltage.MatchString(text) && !strings.Contains(text, "polarity") && !strings.Contains(text, "positive") {
		out = append(out, models.Finding{
			Severity:    models.SeverityWarning,
			Category:    "wiring",
			Description: "DC voltage specified without polarity warnings",
			Location:    "Power specifications",
			Suggestion:  "Add warning about correct polarity connection",
			Confidence:  0.7,
		})
	}

	maglock := strings.Contains(text, "maglock") || strings.Contains(text, "magnetic lock")
	if maglock && !strings.Contains(text, "fire alarm") && !failSafe {
		out = append(out, models.Finding{
			Severity:    models.SeverityInfo,
			Category:    "specification",
			Description: "Magnetic lock mentioned without fail-safe or fire alarm integration details",
			Location:    "Lock specifications",
			Suggestion:  "Clarify that magnetic locks are fail-safe and should integrate with fire alarm systems",
			Confidence:  0.6,
		})
	}
	return out
}

// orphanFigures returns referenced figure numbers, in first-seen order, that
// never appear as a caption line such as "Figure 3: Terminal block".
func orphanFigures(src string) []string {
	captions := map[string]bool{}
	for _, m := range figureCaption.FindAllStringSubmatch(src, -1) {
		captions[m[1]] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range figureRef.FindAllStringSubmatch(src, -1) {
		n := m[1]
		if captions[n] || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
