package ingest

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

var imageMIME = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// partitionPDF splits a PDF into one unit per page. Page count comes from
// pdfcpu, page text from ledongthuc/pdf and the page raster (for scanned
// pages) from the largest embedded image on that page.
func partitionPDF(data []byte, logger *slog.Logger) ([]models.DocumentUnit, error) {
	pageCount, cpuErr := api.PageCount(bytes.NewReader(data), pdfConfig())
	texts, textErr := pageTexts(data)
	if cpuErr != nil && textErr != nil {
		return nil, fmt.Errorf("%w: cannot parse PDF: %v", ErrUnsupportedFormat, cpuErr)
	}
	if cpuErr != nil {
		logger.Warn("pdfcpu could not read the PDF, using text reader page count", "error", cpuErr)
		pageCount = len(texts)
	}
	if textErr != nil {
		logger.Warn("Text layer unreadable, all pages will go to OCR", "error", textErr)
	}

	images, err := pageImages(data)
	if err != nil {
		logger.Warn("Failed to extract page images", "error", err)
	}

	units := make([]models.DocumentUnit, pageCount)
	for i := range units {
		u := models.DocumentUnit{PageIndex: i}
		if i < len(texts) {
			u.Text = texts[i]
			u.HasText = strings.TrimSpace(texts[i]) != ""
		}
		if img, ok := images[i+1]; ok {
			u.Image = img.data
			u.ImageMIME = img.mime
		}
		units[i] = u
	}
	return units, nil
}

// pageTexts returns the plain text of every page, in order.
func pageTexts(data []byte) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf text reader panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	n := reader.NumPage()
	texts = make([]string, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// An unreadable text layer behaves like a scanned page.
			continue
		}
		texts[i-1] = text
	}
	return texts, nil
}

type pageImage struct {
	data []byte
	mime string
	area int
}

// pageImages returns the largest decodable image per 1-based page number.
func pageImages(data []byte) (out map[int]pageImage, err error) {
	out = make(map[int]pageImage)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf image extraction panicked: %v", r)
		}
	}()

	digest := func(img model.Image, _ bool, _ int) error {
		mime, ok := imageMIME[strings.ToLower(img.FileType)]
		if !ok || img.Reader == nil {
			return nil
		}
		area := img.Width * img.Height
		if cur, seen := out[img.PageNr]; seen && cur.area >= area {
			return nil
		}
		raw, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("read image on page %d: %w", img.PageNr, err)
		}
		out[img.PageNr] = pageImage{data: raw, mime: mime, area: area}
		return nil
	}

	if err := api.ExtractImages(bytes.NewReader(data), nil, digest, pdfConfig()); err != nil {
		return out, fmt.Errorf("failed to extract images: %w", err)
	}
	return out, nil
}
