package ingest

import (
	"unicode"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// Decision is the per-page extraction choice.
type Decision struct {
	Method     models.PageMethod
	Confidence float64
}

// Selector chooses direct extraction or OCR for each page from its text density.
type Selector struct {
	MinTextChars int
}

// NewSelector creates a selector. A non-positive threshold falls back to 50.
func NewSelector(minTextChars int) Selector {
	if minTextChars <= 0 {
		minTextChars = 50
	}
	return Selector{MinTextChars: minTextChars}
}

// Decide picks the method for one page. Pages with at least MinTextChars
// non-whitespace characters keep their text; sparser pages, and every page
// when forceOCR is set, go to OCR. Text-only formats never go to OCR.
func (s Selector) Decide(u models.DocumentUnit, forceOCR bool) Decision {
	if u.Native {
		return Decision{Method: models.PageDirectText, Confidence: 1}
	}
	if forceOCR {
		return Decision{Method: models.PageOCR, Confidence: 1}
	}

	chars := 0
	if u.HasText {
		chars = CountTextChars(u.Text)
	}
	if chars >= s.MinTextChars {
		conf := float64(chars) / float64(2*s.MinTextChars)
		return Decision{Method: models.PageDirectText, Confidence: clamp(conf, 0.5, 1)}
	}
	return Decision{Method: models.PageOCR, Confidence: 1 - float64(chars)/float64(s.MinTextChars)}
}

// CountTextChars counts non-whitespace runes.
func CountTextChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
