package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/config"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/ingest"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/logging"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/metrics"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/services"
)

var (
	service *services.ReviewService
	once    sync.Once
	initErr error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ReviewOnUpload", reviewOnUpload)
}

func main() {}

func setup(ctx context.Context) (*services.ReviewService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	app, err := services.Build(ctx, cfg, services.BuildOptions{Metrics: metrics.New(nil), Logger: logger})
	if err != nil {
		return nil, err
	}
	return app.Service, nil
}

// reviewOnUpload is triggered by a GCS object-finalize event.
func reviewOnUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		service, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	_, err := service.ReviewUpload(ctx, gcsEvent)
	if errors.Is(err, ingest.ErrUnsupportedFormat) {
		// Retrying cannot help; the session is already marked failed.
		return nil
	}
	return err
}
