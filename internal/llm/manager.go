package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/metrics"
)

// ConnectionPrompt is sent by TestConnection.
const ConnectionPrompt = "Say 'Hello, I am working correctly!' in exactly those words."

const (
	connectionMaxTokens   = 50
	connectionTemperature = 0.1
	sampleOutputLimit     = 100
)

// Outcome labels recorded per provider attempt.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeRefusal  = "refusal"
	OutcomeEmpty    = "empty"
	OutcomeMissing  = "not_configured"
	OutcomeCanceled = "canceled"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Timeout bounds each provider attempt. Zero means no per-attempt bound.
	Timeout time.Duration
	// Cache enables response caching when non-nil.
	Cache   *ResponseCache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// ConnectionStatus is the TestConnection result for one provider.
type ConnectionStatus struct {
	Available    bool
	Latency      time.Duration
	SampleOutput string
	Error        string
}

// Manager holds the configured providers and walks the fallback chain.
// It is safe for concurrent use.
type Manager struct {
	providers map[string]Provider
	chain     []string
	timeout   time.Duration
	cache     *ResponseCache
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewManager creates a Manager. The chain order is the order of providers:
// the first is the primary, the rest are fallbacks.
func NewManager(providers []Provider, opts ManagerOptions) *Manager {
	m := &Manager{
		providers: make(map[string]Provider, len(providers)),
		chain:     make([]string, 0, len(providers)),
		timeout:   opts.Timeout,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		tracer:    otel.Tracer("github.com/Lllllllleong/engineeringdocumentreview/internal/llm"),
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	for _, p := range providers {
		if _, dup := m.providers[p.Name()]; dup {
			continue
		}
		m.providers[p.Name()] = p
		m.chain = append(m.chain, p.Name())
	}
	return m
}

// Chain returns the provider names in fallback order.
func (m *Manager) Chain() []string { return append([]string(nil), m.chain...) }

// order returns the attempt order for a request. A named provider goes
// first, followed by the rest of the chain.
func (m *Manager) order(provider string) []string {
	if provider == "" {
		return m.Chain()
	}
	out := []string{provider}
	for _, name := range m.chain {
		if name != provider {
			out = append(out, name)
		}
	}
	return out
}

// Generate returns the first successful response along the fallback chain.
// An empty provider starts at the primary. If every attempt fails the error
// is an *UnavailableError.
func (m *Manager) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32, provider string) (string, error) {
	key := CacheKey(provider, prompt, maxTokens, temperature)
	if m.cache != nil {
		text, result := m.cache.Get(key)
		m.metrics.IncrementCache(result)
		if result == CacheHit {
			return text, nil
		}
	}

	ctx, span := m.tracer.Start(ctx, "llm.Generate", trace.WithAttributes(
		attribute.String("llm.requested_provider", provider),
		attribute.Int("llm.max_tokens", maxTokens),
	))
	defer span.End()

	req := Request{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature}
	var attempts []Attempt
	for _, name := range m.order(provider) {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Provider: name, Err: err})
			m.metrics.ObserveProvider(name, OutcomeCanceled, 0)
			break
		}

		text, err := m.attempt(ctx, name, req)
		if err != nil {
			attempts = append(attempts, Attempt{Provider: name, Err: err})
			m.logger.Warn("Provider attempt failed, trying next.", "provider", name, "error", err)
			continue
		}

		if m.cache != nil {
			if provider == "" || provider == name {
				m.cache.Set(key, text)
			}
			if name != provider {
				m.cache.Set(CacheKey(name, prompt, maxTokens, temperature), text)
			}
		}
		span.SetAttributes(attribute.String("llm.provider", name), attribute.Int("llm.attempts", len(attempts)+1))
		return text, nil
	}

	uerr := &UnavailableError{Attempts: attempts}
	span.RecordError(uerr)
	span.SetStatus(codes.Error, "all providers failed")
	m.logger.Error("All LLM providers failed", "providers", uerr.Providers(), "error", uerr)
	return "", uerr
}

// attempt makes one bounded call to a single provider and classifies the result.
func (m *Manager) attempt(ctx context.Context, name string, req Request) (string, error) {
	p, ok := m.providers[name]
	if !ok {
		m.metrics.ObserveProvider(name, OutcomeMissing, 0)
		return "", ErrNotConfigured
	}

	actx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := p.Generate(actx, req)
	elapsed := time.Since(start)

	switch {
	case err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		m.metrics.ObserveProvider(name, OutcomeTimeout, elapsed)
		return "", fmt.Errorf("timed out after %s: %w", m.timeout, err)
	case err != nil:
		m.metrics.ObserveProvider(name, OutcomeError, elapsed)
		return "", err
	case text == "":
		m.metrics.ObserveProvider(name, OutcomeEmpty, elapsed)
		return "", ErrEmptyResponse
	case IsRefusal(text):
		m.metrics.ObserveProvider(name, OutcomeRefusal, elapsed)
		return "", ErrRefusal
	}
	m.metrics.ObserveProvider(name, OutcomeSuccess, elapsed)
	return text, nil
}

// TestConnection probes each configured provider, or only the named one,
// bypassing cache and fallback.
func (m *Manager) TestConnection(ctx context.Context, provider string) map[string]ConnectionStatus {
	names := m.chain
	if provider != "" {
		names = []string{provider}
	}

	out := make(map[string]ConnectionStatus, len(names))
	req := Request{Prompt: ConnectionPrompt, MaxTokens: connectionMaxTokens, Temperature: connectionTemperature}
	for _, name := range names {
		start := time.Now()
		text, err := m.attempt(ctx, name, req)
		status := ConnectionStatus{Latency: time.Since(start)}
		if err != nil {
			status.Error = err.Error()
		} else {
			status.Available = true
			status.SampleOutput = truncateRunes(text, sampleOutputLimit)
		}
		out[name] = status
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
