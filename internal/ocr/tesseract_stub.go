//go:build !tesseract

package ocr

import "errors"

// ErrTesseractUnavailable is returned when the binary was built without the
// tesseract build tag.
var ErrTesseractUnavailable = errors.New("tesseract support not compiled in (build with -tags tesseract)")

// NewTesseractEngine reports that Tesseract is unavailable in this build.
func NewTesseractEngine(languages ...string) (Engine, error) {
	return nil, ErrTesseractUnavailable
}
