package models

import (
	"strings"
	"time"
)

// ExtractionMethod records how the text of a whole document was obtained.
type ExtractionMethod string

const (
	MethodTextExtraction ExtractionMethod = "text_extraction"
	MethodOCR            ExtractionMethod = "ocr"
	MethodMixed          ExtractionMethod = "mixed"
)

// PageMethod is the per-page extraction decision.
type PageMethod string

const (
	PageDirectText PageMethod = "direct_text"
	PageOCR        PageMethod = "ocr"
)

// DocumentUnit is one page or segment of a document as produced by partitioning.
type DocumentUnit struct {
	PageIndex int
	Text      string
	HasText   bool
	// Native marks text from a text-only format (txt, md, docx). Such a
	// unit has no raster form, so there is nothing to recognize.
	Native bool
	// Image is the raster rendition of the page, when one could be located.
	Image     []byte
	ImageMIME string
}

// PageResult is the page-level processing metadata kept alongside the text.
type PageResult struct {
	PageIndex  int        `json:"pageIndex"`
	Method     PageMethod `json:"method"`
	Confidence float64    `json:"confidence"`
	Succeeded  bool       `json:"succeeded"`
	Error      string     `json:"error,omitempty"`
	CharCount  int        `json:"charCount"`
}

// NormalizedContent is the processor output. It is a value object: build it
// with NewNormalizedContent and read it through the accessors.
type NormalizedContent struct {
	text       string
	pages      []string
	results    []PageResult
	method     ExtractionMethod
	byteSize   int64
	duration   time.Duration
	sourceName string
	format     string
}

// PageSeparator joins per-page text in the concatenated document text.
const PageSeparator = "\n\n"

// NewNormalizedContent assembles the content from ordered page results and
// texts. The extraction method is derived from the page methods.
func NewNormalizedContent(sourceName, format string, byteSize int64, pages []string, results []PageResult, duration time.Duration) *NormalizedContent {
	p := append([]string(nil), pages...)
	r := append([]PageResult(nil), results...)
	return &NormalizedContent{
		text:       strings.Join(p, PageSeparator),
		pages:      p,
		results:    r,
		method:     DeriveMethod(r),
		byteSize:   byteSize,
		duration:   duration,
		sourceName: sourceName,
		format:     format,
	}
}

// DeriveMethod reports mixed when both paths were used, otherwise the single
// path every page took. An empty page set counts as text extraction.
func DeriveMethod(results []PageResult) ExtractionMethod {
	var direct, ocr int
	for _, r := range results {
		if r.Method == PageOCR {
			ocr++
		} else {
			direct++
		}
	}
	switch {
	case direct > 0 && ocr > 0:
		return MethodMixed
	case ocr > 0:
		return MethodOCR
	default:
		return MethodTextExtraction
	}
}

func (c *NormalizedContent) Text() string { return c.text }
func (c *NormalizedContent) Method() ExtractionMethod { return c.method }
func (c *NormalizedContent) ByteSize() int64 { return c.byteSize }
func (c *NormalizedContent) PageCount() int { return len(c.pages) }
func (c *NormalizedContent) Duration() time.Duration { return c.duration }
func (c *NormalizedContent) SourceName() string { return c.sourceName }
func (c *NormalizedContent) Format() string { return c.format }
func (c *NormalizedContent) Pages() []string { return append([]string(nil), c.pages...) }
func (c *NormalizedContent) PageResults() []PageResult { return append([]PageResult(nil), c.results...) }
func (c *NormalizedContent) Page(i int) (string, bool) {
	if i < 0 || i >= len(c.pages) {
		return "", false
	}
	return c.pages[i], true
}

// FailedPages returns the indexes of pages whose extraction did not succeed.
func (c *NormalizedContent) FailedPages() []int {
	var failed []int
	for _, r := range c.results {
		if !r.Succeeded {
			failed = append(failed, r.PageIndex)
		}
	}
	return failed
}

// Partial reports whether at least one page fell back to the empty placeholder.
func (c *NormalizedContent) Partial() bool { return len(c.FailedPages()) > 0 }

// ContentSummary is the serializable view of NormalizedContent returned to callers.
type ContentSummary struct {
	SourceName       string           `json:"sourceName"`
	Format           string           `json:"format"`
	ExtractionMethod ExtractionMethod `json:"extractionMethod"`
	ByteSize         int64            `json:"byteSize"`
	PageCount        int              `json:"pageCount"`
	TextLength       int              `json:"textLength"`
	Partial          bool             `json:"partial"`
	Pages            []PageResult     `json:"pages"`
	ProcessingTime   string           `json:"processingTime"`
}

// Summary renders the serializable view.
func (c *NormalizedContent) Summary() ContentSummary {
	return ContentSummary{
		SourceName:       c.sourceName,
		Format:           c.format,
		ExtractionMethod: c.method,
		ByteSize:         c.byteSize,
		PageCount:        len(c.pages),
		TextLength:       len(c.text),
		Partial:          c.Partial(),
		Pages:            c.PageResults(),
		ProcessingTime:   c.duration.String(),
	}
}
