// Package llm holds the LLM provider contract, the response cache and the
// Manager that applies ordered fallback across providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is one generation call to a single provider.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Provider is the call contract for one LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

var (
	// ErrProviderUnavailable is matched by *UnavailableError.
	ErrProviderUnavailable = errors.New("no LLM provider available")
	ErrNotConfigured       = errors.New("provider not configured")
	ErrEmptyResponse       = errors.New("empty response from provider")
	ErrRefusal             = errors.New("provider refused the request")
)

// ProviderError is a failed call to one provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Attempt records one provider tried during a fallback walk.
type Attempt struct {
	Provider string
	Err      error
}

// UnavailableError is returned when every provider in the chain failed.
type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrProviderUnavailable.Error() + ": no providers configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%v)", a.Provider, a.Err))
	}
	return ErrProviderUnavailable.Error() + ": " + strings.Join(parts, ", ")
}

func (e *UnavailableError) Is(target error) bool { return target == ErrProviderUnavailable }

// Providers returns the names attempted, in order.
func (e *UnavailableError) Providers() []string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.Provider)
	}
	return names
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// refusalWindow is how much of a response's opening is searched for a
// refusal phrase.
const refusalWindow = 160

// IsRefusal reports whether a response reads as the model declining. Only
// the opening of the response is checked, and an answer carrying the
// FINDINGS: marker is never a refusal, so quoted document text cannot
// trigger it.
func IsRefusal(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(lower, "findings:") {
		return false
	}
	if len(lower) > refusalWindow {
		lower = lower[:refusalWindow]
	}
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
