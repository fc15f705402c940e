package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// pageBreak separates pages in plain text files.
const pageBreak = "\f"

func nativeUnit(i int, text string) models.DocumentUnit {
	return models.DocumentUnit{
		PageIndex: i,
		Text:      text,
		HasText:   strings.TrimSpace(text) != "",
		Native:    true,
	}
}

func partitionText(data []byte) ([]models.DocumentUnit, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: text file is not valid UTF-8", ErrUnsupportedFormat)
	}
	pages := strings.Split(string(data), pageBreak)
	units := make([]models.DocumentUnit, len(pages))
	for i, p := range pages {
		units[i] = nativeUnit(i, strings.TrimSpace(p))
	}
	return units, nil
}

func partitionMarkdown(data []byte) ([]models.DocumentUnit, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: markdown file is not valid UTF-8", ErrUnsupportedFormat)
	}
	return []models.DocumentUnit{nativeUnit(0, string(data))}, nil
}

// partitionDOCX reads the paragraph text of word/document.xml.
func partitionDOCX(data []byte) ([]models.DocumentUnit, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: docx is not a zip archive: %v", ErrUnsupportedFormat, err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: docx has no word/document.xml", ErrUnsupportedFormat)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer rc.Close()

	text, err := docxText(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return []models.DocumentUnit{nativeUnit(0, text)}, nil
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	var para strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := strings.TrimSpace(para.String()); line != "" {
					sb.WriteString(line)
					sb.WriteByte('\n')
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func partitionImage(data []byte, mime string) []models.DocumentUnit {
	return []models.DocumentUnit{{PageIndex: 0, Image: data, ImageMIME: mime}}
}
