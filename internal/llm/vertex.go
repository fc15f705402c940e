package llm

import (
	"context"
	"fmt"
)

// TextGenerator is the subset of gcp.VertexClient used by VertexProvider.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, prompt string, maxTokens int32, temperature float32) (string, error)
}

// VertexProvider serves requests from Gemini on Vertex AI.
type VertexProvider struct {
	name   string
	client TextGenerator
}

// NewVertexProvider wraps a Vertex client under the given provider name.
func NewVertexProvider(name string, client TextGenerator) *VertexProvider {
	return &VertexProvider{name: name, client: client}
}

func (p *VertexProvider) Name() string { return p.name }

func (p *VertexProvider) Generate(ctx context.Context, req Request) (string, error) {
	text, err := p.client.Generate(ctx, "", req.Prompt, int32(req.MaxTokens), req.Temperature)
	if err != nil {
		return "", &ProviderError{Provider: p.name, Err: fmt.Errorf("vertex generate: %w", err)}
	}
	return text, nil
}
