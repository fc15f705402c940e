// Command docreview reviews a local document and prints the result as JSON.
//
//	docreview [-force-ocr] [-agents technical,brand] [-report dir] file
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/config"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/logging"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/services"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "docreview:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("docreview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	forceOCR := fs.Bool("force-ocr", false, "run OCR on every page")
	agentList := fs.String("agents", "", "comma-separated agents to run (default: all configured)")
	reportDir := fs.String("report", "", "directory to write the markdown report to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one file argument")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Logs go to stderr so stdout stays valid JSON.
	logger := logging.NewWithWriter(stderr, cfg.Logging.Level, "text")

	app, err := services.Build(ctx, cfg, services.BuildOptions{Local: true, ReportDir: *reportDir, Logger: logger})
	if err != nil {
		return err
	}
	defer app.Close()

	req := models.ReviewRequest{SourceURI: fs.Arg(0), ForceOCR: *forceOCR}
	if *agentList != "" {
		for _, a := range strings.Split(*agentList, ",") {
			if a = strings.TrimSpace(a); a != "" {
				req.Agents = append(req.Agents, a)
			}
		}
	}

	resp, err := app.Service.Review(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
