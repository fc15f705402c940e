package agents

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

const formattingFocus = `You are specifically focused on FORMATTING and STANDARDS COMPLIANCE. Review the document for:
1. Fraction Format: Inconsistent fraction notation (1/2 vs 0.5)
2. Measurement Units: Missing units, inconsistent unit formatting, metric vs imperial
3. Number Format: Inconsistent decimal places, number formatting
4. List Formatting: Inconsistent bullet points, numbering, indentation
5. Reference Format: Inconsistent figure/table references, citation format
6. Heading Structure: Skipped heading levels, unclear hierarchy`

var (
	imperialDecimal = regexp.MustCompile(`(?i)\b(\d+\.\d+)\s*(?:inches|inch|in\b|")`)
	metricFraction  = regexp.MustCompile(`(?i)\b(\d+(?:\s*-\s*)?\d*/\d+)\s*(mm|cm|millimeters?|centimeters?)\b`)
	metricPrecision = regexp.MustCompile(`(?i)\b(\d+\.\d{2,})\s*(mm|cm|millimeters?|centimeters?)\b`)
	inchToMM        = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:inches|inch|in\b|")\s*[\[(]?\s*=?\s*(\d+(?:\.\d+)?)\s*(?:mm|millimeters?)\b`)
	fahrenheitToC   = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*°\s*F\s*[\[(/]?\s*=?\s*(-?\d+(?:\.\d+)?)\s*°\s*C`)
)

// markdownFormat is the ingest format name for markdown sources.
const markdownFormat = "md"

// common fractions used in imperial technical drawings, in sixteenths
var sixteenths = []string{"", "1/16", "1/8", "3/16", "1/4", "5/16", "3/8", "7/16", "1/2", "9/16", "5/8", "11/16", "3/4", "13/16", "7/8", "15/16"}

// Formatting checks measurement notation, conversions and heading structure.
type Formatting struct {
	*Base
	md goldmark.Markdown
}

// NewFormatting creates the formatting and standards reviewer.
func NewFormatting(opts Options) *Formatting {
	f := &Formatting{md: goldmark.New()}
	f.Base = newBase(NameFormatting, "formatting", Profile{
		Role:                "Formatting Standards Reviewer",
		Goal:                "Ensure consistent measurement notation, accurate unit conversions and clean document structure",
		Backstory:           "You are a technical editor who maintains the house style for installation guides: imperial fractions with metric in brackets, one decimal place for metric values.",
		ConfidenceThreshold: 0.8,
	}, formattingFocus, f.rules, opts)
	return f
}

func (f *Formatting) rules(rc *ReviewContext) []models.Finding {
	src := rc.Text()
	var out []models.Finding

	for _, m := range imperialDecimal.FindAllStringSubmatch(src, -1) {
		v, _ := strconv.ParseFloat(m[1], 64)
		out = append(out, models.Finding{
			Severity:    models.SeverityWarning,
			Category:    "standards",
			Description: fmt.Sprintf("Imperial measurement using decimal notation: '%s'", m[0]),
			Location:    "Measurement: " + m[0],
			Suggestion:  "Use fractional notation: " + nearestFraction(v),
			Confidence:  0.9,
		})
	}

	for _, m := range metricFraction.FindAllStringSubmatch(src, -1) {
		finding := models.Finding{
			Severity:    models.SeverityWarning,
			Category:    "standards",
			Description: fmt.Sprintf("Metric measurement using fraction notation: '%s'", m[0]),
			Location:    "Measurement: " + m[0],
			Suggestion:  "Use decimal notation for metric measurements",
			Confidence:  0.8,
		}
		if v, ok := fractionValue(m[1]); ok {
			finding.Suggestion = fmt.Sprintf("Use decimal notation: %s%s", formatOneDecimal(v), m[2])
			finding.Confidence = 0.9
		}
		out = append(out, finding)
	}

	for _, m := range metricPrecision.FindAllStringSubmatch(src, -1) {
		v, _ := strconv.ParseFloat(m[1], 64)
		out = append(out, models.Finding{
			Severity:    models.SeverityInfo,
			Category:    "precision",
			Description: fmt.Sprintf("Metric measurement with excessive precision: '%s'", m[0]),
			Location:    "Measurement: " + m[0],
			Suggestion:  fmt.Sprintf("Round to 1 decimal place: %s%s", formatOneDecimal(v), m[2]),
			Confidence:  0.8,
		})
	}

	out = append(out, conversionFindings(src)...)
	if rc.Format() == markdownFormat {
		out = append(out, f.headingFindings([]byte(src))...)
	}
	return out
}

func conversionFindings(src string) []models.Finding {
	var out []models.Finding
	for _, m := range inchToMM.FindAllStringSubmatch(src, -1) {
		in, err1 := strconv.ParseFloat(m[1], 64)
		mm, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if want := in * 25.4; math.Abs(mm-want) > 0.5 {
			out = append(out, models.Finding{
				Severity:    models.SeverityError,
				Category:    "conversion",
				Description: fmt.Sprintf("Incorrect conversion: %s inch should be %.1f mm, not %s mm", m[1], want, m[2]),
				Location:    "Conversion: " + m[0],
				Suggestion:  fmt.Sprintf("Correct conversion: %s inch = %.1f mm", m[1], want),
				Confidence:  0.95,
			})
		}
	}
	for _, m := range fahrenheitToC.FindAllStringSubmatch(src, -1) {
		f, err1 := strconv.ParseFloat(m[1], 64)
		c, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if want := (f - 32) * 5 / 9; math.Abs(c-want) > 0.5 {
			out = append(out, models.Finding{
				Severity:    models.SeverityError,
				Category:    "conversion",
				Description: fmt.Sprintf("Incorrect temperature conversion: %s°F should be %.1f°C, not %s°C", m[1], want, m[2]),
				Location:    "Conversion: " + m[0],
				Suggestion:  fmt.Sprintf("Correct conversion: %s°F = %.1f°C", m[1], want),
				Confidence:  0.95,
			})
		}
	}
	return out
}

// headingFindings reports headings that jump more than one level deeper
// than the heading before them.
func (f *Formatting) headingFindings(src []byte) []models.Finding {
	doc := f.md.Parser().Parse(text.NewReader(src))

	var out []models.Finding
	prev := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		if prev > 0 && h.Level > prev+1 {
			title := strings.TrimSpace(string(h.Text(src)))
			out = append(out, models.Finding{
				Severity:    models.SeverityWarning,
				Category:    "structure",
				Description: fmt.Sprintf("Heading level skips from H%d to H%d: '%s'", prev, h.Level, title),
				Location:    "Heading: " + title,
				Suggestion:  fmt.Sprintf("Use an H%d heading or add the missing intermediate level", prev+1),
				Confidence:  0.85,
			})
		}
		prev = h.Level
		return ast.WalkSkipChildren, nil
	})
	return out
}

// nearestFraction renders v as a whole number plus the closest sixteenth.
func nearestFraction(v float64) string {
	whole := int(v)
	frac := v - float64(whole)
	n := int(math.Round(frac * 16))
	if n == 16 {
		whole++
		n = 0
	}
	switch {
	case frac <= 0.03 || n == 0:
		return strconv.Itoa(whole)
	case whole == 0:
		return sixteenths[n]
	default:
		return fmt.Sprintf("%d-%s", whole, sixteenths[n])
	}
}

// fractionValue parses "3/4" or "1-1/2".
func fractionValue(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	whole := 0.0
	if w, rest, ok := strings.Cut(s, "-"); ok {
		v, err := strconv.Atoi(w)
		if err != nil {
			return 0, false
		}
		whole = float64(v)
		s = rest
	}
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0, false
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, false
	}
	return whole + float64(n)/float64(d), true
}

func formatOneDecimal(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
