package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/gcp"
)

var (
	// ErrSourceNotFound is returned when the input cannot be read.
	ErrSourceNotFound = errors.New("source not found")
	// ErrUnsupportedFormat is returned for unrecognized or unparseable file types.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Source reads raw document bytes by name.
type Source interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// FileSource reads from the local filesystem.
type FileSource struct{}

func (FileSource) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceNotFound, name, err)
	}
	return data, nil
}

// GCSSource reads gs://bucket/object URIs.
type GCSSource struct {
	client *storage.Client
}

func NewGCSSource(client *storage.Client) *GCSSource {
	return &GCSSource{client: client}
}

func (s *GCSSource) Read(ctx context.Context, name string) ([]byte, error) {
	bucket, object, err := gcp.ParseGCSURI(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceNotFound, err)
	}
	data, err := gcp.ReadObject(ctx, s.client, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceNotFound, err)
	}
	return data, nil
}

// MultiSource routes gs:// names to GCS and everything else to Local.
// A nil GCS source makes gs:// names unreadable.
type MultiSource struct {
	Local Source
	GCS   Source
}

func (m MultiSource) Read(ctx context.Context, name string) ([]byte, error) {
	if gcp.IsGCSURI(name) {
		if m.GCS == nil {
			return nil, fmt.Errorf("%w: %s: no GCS client configured", ErrSourceNotFound, name)
		}
		return m.GCS.Read(ctx, name)
	}
	if m.Local == nil {
		return nil, fmt.Errorf("%w: %s: local files disabled", ErrSourceNotFound, name)
	}
	return m.Local.Read(ctx, name)
}
