package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// --- OCR Model Prompts ---
const OCRSystemPrompt = "You are an OCR engine for engineering documents. Transcribe the text of the page image exactly as written. Accuracy and completeness are of utmost importance."
const OCRUserPrompt = `Extract all text from this image. Maintain the original formatting and structure where possible.

Follow these rules:
Text: Transcribe every word, number and unit exactly. Do not correct spelling or units.
Tables: Render tables as markdown tables.
Diagrams: Transcribe labels and callouts; do not describe the drawing.
Headers and Footers: Keep them, they may carry revision information.

Return ONLY the extracted text. Do not include any preamble or surround the output with backtick fences.`

// VertexClient wraps the genai client. Models are created per call so that
// generation settings never leak between concurrent requests.
type VertexClient struct {
	baseClient *genai.Client
	modelName  string
}

// NewVertexClient creates a new client for the given Gemini model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexClient{baseClient: baseClient, modelName: modelName}, nil
}

// ModelName returns the Gemini model used by this client.
func (c *VertexClient) ModelName() string { return c.modelName }

func (c *VertexClient) model(systemPrompt string, maxTokens int32, temperature float32) *genai.GenerativeModel {
	m := c.baseClient.GenerativeModel(c.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(temperature),
	}
	if maxTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = genai.Ptr(maxTokens)
	}
	// Installation manuals routinely describe mains wiring and lock hardware.
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockOnlyHigh},
	}
	return m
}

// Generate sends a text prompt and returns the concatenated text parts.
func (c *VertexClient) Generate(ctx context.Context, systemPrompt, prompt string, maxTokens int32, temperature float32) (string, error) {
	resp, err := c.model(systemPrompt, maxTokens, temperature).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	text, _ := ResponseText(resp)
	return text, nil
}

// ImageText asks the model to transcribe one page image.
func (c *VertexClient) ImageText(ctx context.Context, mimeType string, image []byte) (string, error) {
	img := genai.Blob{MIMEType: mimeType, Data: image}
	resp, err := c.model(OCRSystemPrompt, 0, 0.1).GenerateContent(ctx, img, genai.Text(OCRUserPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	text, _ := ResponseText(resp)
	return StripFences(text), nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// ResponseText extracts and concatenates the text parts of the first
// candidate. It also returns the number of text parts found.
func ResponseText(resp *genai.GenerateContentResponse) (string, int) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", 0
	}

	var sb strings.Builder
	var textPartsFound int
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
			textPartsFound++
		}
	}
	return strings.TrimSpace(sb.String()), textPartsFound
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " \t") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
