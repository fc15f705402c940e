package ocr

import (
	"context"
	"strings"
)

// Chain tries engines in order and returns the first recognized text.
type Chain struct {
	engines []Engine
}

// NewChain returns an engine over the non-nil engines given. It returns nil
// when none remain and the single engine itself when only one does.
func NewChain(engines ...Engine) Engine {
	var list []Engine
	for _, e := range engines {
		if e != nil {
			list = append(list, e)
		}
	}
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	}
	return &Chain{engines: list}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.engines))
	for i, e := range c.engines {
		names[i] = e.Name()
	}
	return strings.Join(names, ">")
}

// Recognize returns the first engine's answer that succeeds. When every
// engine fails the last engine's classified error is returned. A cancelled
// context stops the chain.
func (c *Chain) Recognize(ctx context.Context, in Input) (string, error) {
	var last *Error
	for _, e := range c.engines {
		if err := ctx.Err(); err != nil {
			return "", classify(e.Name(), err)
		}
		text, err := e.Recognize(ctx, in)
		if err == nil {
			return text, nil
		}
		last = classify(e.Name(), err)
	}
	return "", last
}
