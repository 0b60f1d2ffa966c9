// Package extract converts uploaded documents into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/conorfennell/studydeck/internal/domain"
)

// Document is the text content of an uploaded file.
type Document struct {
	Text  string
	Pages int
}

// Extractor turns raw document bytes into text.
type Extractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64) (Document, error)
}

// ForName picks an extractor from the file extension. Unknown extensions are
// treated as PDF.
func ForName(name string) Extractor {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown":
		return Plain{}
	default:
		return PDF{}
	}
}

// PDF extracts the plain text of every page of a PDF document.
type PDF struct{}

// Extract reads the document page by page. Pages without content are skipped.
func (PDF) Extract(ctx context.Context, r io.ReaderAt, size int64) (doc Document, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: malformed pdf: %v", domain.ErrExtraction, p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Document{}, fmt.Errorf("%w: failed to open pdf: %v", domain.ErrExtraction, err)
	}

	var text strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(content)
		text.WriteString("\n\n")
	}

	return Document{Text: text.String(), Pages: pages}, nil
}

// Plain treats the document as UTF-8 text on a single page.
type Plain struct{}

// Extract reads the whole document.
func (Plain) Extract(ctx context.Context, r io.ReaderAt, size int64) (Document, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.NewSectionReader(r, 0, size)); err != nil {
		return Document{}, fmt.Errorf("%w: failed to read text: %v", domain.ErrExtraction, err)
	}
	if !utf8.Valid(buf.Bytes()) {
		return Document{}, fmt.Errorf("%w: text is not valid UTF-8", domain.ErrExtraction)
	}
	return Document{Text: buf.String(), Pages: 1}, nil
}
