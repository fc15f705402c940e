package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatMessage is one message of an OpenAI-compatible chat completion.
// Content is either a string or a slice of ContentPart.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image reference, typically a base64 data URL.
type ImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatClient talks to a /chat/completions endpoint (Groq, Mistral and
// similar OpenAI-compatible services).
type ChatClient struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewChatClient creates a client. A nil httpClient uses a client with a
// 60 second timeout.
func NewChatClient(name, baseURL, apiKey, model string, httpClient *http.Client) (*ChatClient, error) {
	if baseURL == "" || apiKey == "" || model == "" {
		return nil, fmt.Errorf("NewChatClient %s: baseURL, apiKey and model cannot be empty", name)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ChatClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    httpClient,
	}, nil
}

// Name returns the provider name.
func (c *ChatClient) Name() string { return c.name }

// Model returns the configured model identifier.
func (c *ChatClient) Model() string { return c.model }

// Complete posts a chat completion and returns the first choice's content.
func (c *ChatClient) Complete(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float32) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", &ProviderError{Provider: c.name, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Provider: c.name, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: c.name, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &ProviderError{Provider: c.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProviderError{Provider: c.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", snippet(raw))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Provider: c.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed body: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: c.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed body: no choices")}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// ChatProvider adapts a ChatClient to the Provider contract.
type ChatProvider struct {
	client *ChatClient
}

// NewChatProvider wraps client as a Provider.
func NewChatProvider(client *ChatClient) *ChatProvider {
	return &ChatProvider{client: client}
}

func (p *ChatProvider) Name() string { return p.client.Name() }

// Generate sends the prompt as a single user message.
func (p *ChatProvider) Generate(ctx context.Context, req Request) (string, error) {
	return p.client.Complete(ctx, []ChatMessage{{Role: "user", Content: req.Prompt}}, req.MaxTokens, req.Temperature)
}
