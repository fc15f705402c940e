package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/config"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/logging"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

func TestBuild_LocalRulesOnly(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Enabled = false
	cfg.OCR.Engine = config.EngineNone

	dir := t.TempDir()
	app, err := Build(context.Background(), cfg, BuildOptions{Local: true, ReportDir: dir, Logger: logging.Discard()})
	require.NoError(t, err)
	defer app.Close()

	assert.Empty(t, app.Manager.Chain())

	doc := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Install\n\n### Wiring\n\nUse 0.5 inch screws."), 0o644))

	resp, err := app.Service.Review(context.Background(), models.ReviewRequest{SourceURI: doc})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, resp.Status)
	assert.FileExists(t, resp.ReportURI)

	formatting, ok := resp.Review.ByAgent("formatting")
	require.True(t, ok)
	assert.Len(t, formatting, 2)
}

func TestBuild_ChatChain(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Chain = []string{"groq", "mistral"}
	groq := cfg.Providers.Endpoints["groq"]
	groq.APIKey = "gsk-test"
	cfg.Providers.Endpoints["groq"] = groq
	mistral := cfg.Providers.Endpoints["mistral"]
	mistral.APIKey = "ms-test"
	cfg.Providers.Endpoints["mistral"] = mistral

	app, err := Build(context.Background(), cfg, BuildOptions{Local: true, Logger: logging.Discard()})
	require.NoError(t, err)
	defer app.Close()
	assert.Equal(t, []string{"groq", "mistral"}, app.Manager.Chain())
}

func TestBuild_UnknownAgent(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Enabled = false
	cfg.OCR.Engine = config.EngineNone
	cfg.Review.Agents = []string{"legal"}

	_, err := Build(context.Background(), cfg, BuildOptions{Local: true, Logger: logging.Discard()})
	assert.Error(t, err)
}
