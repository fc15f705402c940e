// Package ocr defines the OCR engine contract and its implementations.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/llm"
)

// Input is one page image to recognize.
type Input struct {
	PageIndex int
	Image     []byte
	MIMEType  string
	Model     string
	DPI       int
}

// Engine turns a page image into text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (string, error)
}

// Kind classifies OCR failures. Callers treat every kind the same way.
type Kind string

const (
	KindRateLimited    Kind = "rate_limited"
	KindMalformedInput Kind = "malformed_input"
	KindTimeout        Kind = "timeout"
	KindUnavailable    Kind = "unavailable"
)

// Error is a structured OCR failure.
type Error struct {
	Engine string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ocr %s: %s: %v", e.Engine, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNoImage is returned when a page has no raster image to recognize.
var ErrNoImage = errors.New("page has no image")

// classify maps a backend failure onto an *Error.
func classify(engine string, err error) *Error {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr
	}
	kind := KindUnavailable
	var perr *llm.ProviderError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, ErrNoImage):
		kind = KindMalformedInput
	case errors.As(err, &perr):
		switch perr.StatusCode {
		case http.StatusTooManyRequests:
			kind = KindRateLimited
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity, http.StatusUnsupportedMediaType:
			kind = KindMalformedInput
		case http.StatusGatewayTimeout, http.StatusRequestTimeout:
			kind = KindTimeout
		}
	}
	return &Error{Engine: engine, Kind: kind, Err: err}
}
