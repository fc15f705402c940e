package agents

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

const brandFocus = `You are specifically focused on BRAND CONSISTENCY and PROFESSIONAL PRESENTATION. Review the document for:
1. Visual Consistency: Inconsistent formatting, spacing, layout issues
2. Professional Appearance: Unprofessional language, layout problems
3. Brand Standards: Inconsistent terminology, missing branding elements
4. Document Structure: Poor organization, missing sections, unclear hierarchy
5. Language Quality: Grammar errors, unclear phrasing, inconsistent tone`

// DefaultBrandTerms lists product and industry terms with their canonical spelling.
var DefaultBrandTerms = []string{"Wi-Fi", "Bluetooth", "PoE", "RS-485", "Wiegand", "OSDP", "NFC", "USB"}

var informalTerms = []string{"gonna", "wanna", "kinda", "sorta", "stuff", "awesome", "super easy", "no worries", "btw"}

var (
	informalPattern = regexp.MustCompile(`\b(?:` + strings.Join(informalTerms, "|") + `)\b`)
	wordPattern     = regexp.MustCompile(`[\p{L}][\p{L}'-]*`)
)

// Brand checks terminology, tone and presentation.
type Brand struct {
	*Base
	terms    []string
	patterns []*regexp.Regexp
}

// NewBrand creates the brand and presentation reviewer. A nil terms list
// uses DefaultBrandTerms.
func NewBrand(opts Options, terms []string) *Brand {
	if terms == nil {
		terms = DefaultBrandTerms
	}
	b := &Brand{terms: terms}
	for _, t := range terms {
		b.patterns = append(b.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(t)+`\b`))
	}
	b.Base = newBase(NameBrand, "brand", Profile{
		Role:                "Brand and Presentation Reviewer",
		Goal:                "Keep terminology, tone and document structure consistent with the brand guidelines",
		Backstory:           "You are a documentation lead who signs off every customer-facing installation guide before release.",
		ConfidenceThreshold: 0.7,
	}, brandFocus, b.rules, opts)
	return b
}

func (b *Brand) rules(rc *ReviewContext) []models.Finding {
	src := rc.Text()
	var out []models.Finding

	for i, term := range b.terms {
		seen := map[string]bool{}
		for _, v := range b.patterns[i].FindAllString(src, -1) {
			if v == term || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, models.Finding{
				Severity:    models.SeverityWarning,
				Category:    "terminology",
				Description: fmt.Sprintf("Inconsistent capitalization of '%s': found '%s'", term, v),
				Location:    "Term: " + v,
				Suggestion:  fmt.Sprintf("Write '%s' consistently", term),
				Confidence:  0.8,
			})
		}
	}

	seen := map[string]bool{}
	for _, term := range informalPattern.FindAllString(strings.ToLower(src), -1) {
		if !seen[term] {
			seen[term] = true
			out = append(out, models.Finding{
				Severity:    models.SeverityInfo,
				Category:    "language",
				Description: fmt.Sprintf("Informal language: '%s'", term),
				Location:    "Term: " + term,
				Suggestion:  "Use a neutral, professional tone",
				Confidence:  0.75,
			})
		}
	}

	for _, w := range repeatedWords(src) {
		out = append(out, models.Finding{
			Severity:    models.SeverityWarning,
			Category:    "language",
			Description: fmt.Sprintf("Repeated word: '%s %s'", w, w),
			Location:    "Text: " + w,
			Suggestion:  "Remove the duplicated word",
			Confidence:  0.9,
		})
	}

	if !hasTitle(src) {
		out = append(out, models.Finding{
			Severity:    models.SeverityInfo,
			Category:    "structure",
			Description: "Document does not start with a title",
			Location:    "Beginning of document",
			Suggestion:  "Start the document with a short title naming the product and procedure",
			Confidence:  0.7,
		})
	}
	return out
}

// repeatedWords returns each word that appears twice in a row, once.
func repeatedWords(src string) []string {
	words := wordPattern.FindAllString(src, -1)
	seen := map[string]bool{}
	var out []string
	for i := 1; i < len(words); i++ {
		w := strings.ToLower(words[i])
		if w == strings.ToLower(words[i-1]) && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// hasTitle reports whether the first non-empty line reads like a title.
func hasTitle(src string) bool {
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line == "" {
			continue
		}
		r := []rune(line)
		return len(r) <= 100 && !strings.HasSuffix(line, ".") && unicode.IsUpper(r[0])
	}
	return false
}
