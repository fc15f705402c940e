package ocr

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/llm"
)

// ChatPrompt is sent with every page image.
const ChatPrompt = "Please extract all text from this image. Return only the text content without any additional formatting or commentary. If the image contains tables, preserve the table structure using spaces or tabs. If there are multiple columns, separate them clearly."

// ChatEngine recognizes pages through a vision-capable chat completion
// endpoint (Mistral Pixtral by default).
type ChatEngine struct {
	client    *llm.ChatClient
	maxTokens int
}

// NewChatEngine creates an engine over client.
func NewChatEngine(client *llm.ChatClient, maxTokens int) *ChatEngine {
	return &ChatEngine{client: client, maxTokens: maxTokens}
}

func (e *ChatEngine) Name() string { return "chat:" + e.client.Name() }

// Recognize sends the image as a base64 data URL at temperature 0.1.
func (e *ChatEngine) Recognize(ctx context.Context, in Input) (string, error) {
	if len(in.Image) == 0 {
		return "", classify(e.Name(), ErrNoImage)
	}
	mime := in.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	url := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(in.Image)

	messages := []llm.ChatMessage{{
		Role: "user",
		Content: []llm.ContentPart{
			{Type: "text", Text: ChatPrompt},
			{Type: "image_url", ImageURL: &llm.ImageURL{URL: url}},
		},
	}}
	text, err := e.client.Complete(ctx, messages, e.maxTokens, 0.1)
	if err != nil {
		return "", classify(e.Name(), err)
	}
	return strings.TrimSpace(text), nil
}
