package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// Supported formats.
const (
	FormatPDF      = "pdf"
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatDOCX     = "docx"
	FormatImage    = "image"
)

var extFormats = map[string]string{
	".pdf":      FormatPDF,
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".docx":     FormatDOCX,
	".png":      FormatImage,
	".jpg":      FormatImage,
	".jpeg":     FormatImage,
	".tif":      FormatImage,
	".tiff":     FormatImage,
}

// Partitioner splits raw document bytes into ordered units.
type Partitioner interface {
	Partition(ctx context.Context, name string, data []byte) ([]models.DocumentUnit, string, error)
}

// FormatPartitioner picks a format from the file extension, sniffing the
// content when there is none.
type FormatPartitioner struct {
	Logger *slog.Logger
}

// DetectFormat returns the format name for a document, or "" if unsupported.
func DetectFormat(name string, data []byte) string {
	if f, ok := extFormats[strings.ToLower(path.Ext(name))]; ok {
		return f
	}
	if path.Ext(name) != "" {
		return ""
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return FormatPDF
	}
	switch ct := http.DetectContentType(data); {
	case strings.HasPrefix(ct, "image/png"), strings.HasPrefix(ct, "image/jpeg"):
		return FormatImage
	case strings.HasPrefix(ct, "text/plain"):
		return FormatText
	}
	return ""
}

func (p FormatPartitioner) Partition(_ context.Context, name string, data []byte) ([]models.DocumentUnit, string, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	format := DetectFormat(name, data)
	var (
		units []models.DocumentUnit
		err   error
	)
	switch format {
	case FormatPDF:
		units, err = partitionPDF(data, logger.With("format", format))
	case FormatText:
		units, err = partitionText(data)
	case FormatMarkdown:
		units, err = partitionMarkdown(data)
	case FormatDOCX:
		units, err = partitionDOCX(data)
	case FormatImage:
		units = partitionImage(data, http.DetectContentType(data))
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, format, err
	}
	return units, format, nil
}
