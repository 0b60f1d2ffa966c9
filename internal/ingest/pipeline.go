package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/extract"
)

// Meta describes the document a Result was generated from.
type Meta struct {
	DocumentName string    `json:"pdfName"`
	Pages        int       `json:"pages"`
	ExtractedAt  time.Time `json:"extractedAt"`
}

// Result is the outcome of ingesting one document.
type Result struct {
	Cards []domain.GeneratedCard `json:"cards"`
	Meta  Meta                   `json:"meta"`
}

// Pipeline chunks document text and synthesizes cards for every section.
// It never persists anything.
type Pipeline struct {
	Synth     Synthesizer
	Extractor func(name string) extract.Extractor
	Now       func() time.Time
}

// NewPipeline returns a pipeline using random card ids, extension-based
// extractors and the wall clock.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Extractor: extract.ForName,
		Now:       time.Now,
	}
}

// Ingest generates cards from already extracted text. Cards are ordered by
// section, then by rule.
func (p *Pipeline) Ingest(text string, pages int, documentName string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: %s contains no text", domain.ErrExtraction, documentName)
	}

	sections := Chunk(text)
	cards := []domain.GeneratedCard{}
	for _, section := range sections {
		cards = append(cards, p.Synth.Synthesize(section, documentName)...)
	}

	slog.Info("Document ingested",
		"document", documentName,
		"pages", pages,
		"sections", len(sections),
		"cards", len(cards),
	)

	return Result{
		Cards: cards,
		Meta: Meta{
			DocumentName: documentName,
			Pages:        pages,
			ExtractedAt:  p.now().UTC(),
		},
	}, nil
}

// IngestReader extracts the document text and ingests it. Any extraction
// failure aborts the whole request.
func (p *Pipeline) IngestReader(ctx context.Context, r io.ReaderAt, size int64, documentName string) (Result, error) {
	extractorFor := p.Extractor
	if extractorFor == nil {
		extractorFor = extract.ForName
	}
	doc, err := extractorFor(documentName).Extract(ctx, r, size)
	if err != nil {
		return Result{}, fmt.Errorf("failed to extract %s: %w", documentName, err)
	}
	return p.Ingest(doc.Text, doc.Pages, documentName)
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
