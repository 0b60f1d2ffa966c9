// Package ingest turns extracted document text into candidate flashcards.
package ingest

import (
	"regexp"
	"strings"

	"github.com/conorfennell/studydeck/internal/domain"
)

var (
	blankLine = regexp.MustCompile(`\n[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]*\n`)
	titleRe   = regexp.MustCompile(`^([A-Z][A-Za-z0-9 \-]{3,50})[:\-]`)
)

// Chunk splits text into sections on blank lines. A blank line may hold any
// Unicode space, such as the no-break spaces PDF extraction often leaves.
// Whitespace inside a section is collapsed to single spaces and empty sections
// are dropped. Page numbers are not tracked, so every section spans page 1.
func Chunk(fullText string) []domain.RawSection {
	var sections []domain.RawSection
	for _, block := range blankLine.Split(fullText, -1) {
		text := strings.Join(strings.Fields(block), " ")
		if text == "" {
			continue
		}
		sections = append(sections, domain.RawSection{
			Title:     GuessTitle(text),
			Text:      text,
			PageStart: 1,
			PageEnd:   1,
		})
	}
	return sections
}

// GuessTitle returns a leading capitalized phrase followed by a colon or
// hyphen, or "" when the text has none.
func GuessTitle(text string) string {
	m := titleRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
