package ocr

import "context"

// ImageTexter is the subset of gcp.VertexClient used for OCR.
type ImageTexter interface {
	ImageText(ctx context.Context, mimeType string, image []byte) (string, error)
}

// VertexEngine recognizes pages with Gemini multimodal input.
type VertexEngine struct {
	client ImageTexter
}

func NewVertexEngine(client ImageTexter) *VertexEngine {
	return &VertexEngine{client: client}
}

func (e *VertexEngine) Name() string { return "vertex" }

func (e *VertexEngine) Recognize(ctx context.Context, in Input) (string, error) {
	if len(in.Image) == 0 {
		return "", classify(e.Name(), ErrNoImage)
	}
	mime := in.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	text, err := e.client.ImageText(ctx, mime, in.Image)
	if err != nil {
		return "", classify(e.Name(), err)
	}
	return text, nil
}
