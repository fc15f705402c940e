package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/config"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/httpapi"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/logging"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/metrics"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/services"
)

var (
	handler *httpapi.Handler
	once    sync.Once
	initErr error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleReviewDocument", handleReviewDocument)
}

func main() {}

func setup(ctx context.Context) (*httpapi.Handler, error) {
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
	return httpapi.New(app.Service, logger), nil
}

// handleReviewDocument reviews the document named in the JSON body.
func handleReviewDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		handler, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Review service initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	handler.HandleCreateReview(w, r)
}
