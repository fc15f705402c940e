//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs the local Tesseract library through gosseract.
type TesseractEngine struct {
	languages []string
}

// NewTesseractEngine constructs a Tesseract-backed engine.
func NewTesseractEngine(languages ...string) (Engine, error) {
	return &TesseractEngine{languages: languages}, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (string, error) {
	if len(in.Image) == 0 {
		return "", classify(e.Name(), ErrNoImage)
	}
	if err := ctx.Err(); err != nil {
		return "", classify(e.Name(), err)
	}

	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return "", &Error{Engine: e.Name(), Kind: KindMalformedInput, Err: fmt.Errorf("set image: %w", err)}
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return "", &Error{Engine: e.Name(), Kind: KindUnavailable, Err: fmt.Errorf("set languages: %w", err)}
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return "", &Error{Engine: e.Name(), Kind: KindUnavailable, Err: fmt.Errorf("set dpi: %w", err)}
		}
	}
	text, err := c.Text()
	if err != nil {
		return "", &Error{Engine: e.Name(), Kind: KindUnavailable, Err: fmt.Errorf("recognize text: %w", err)}
	}
	return strings.TrimSpace(text), nil
}
