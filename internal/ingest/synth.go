package ingest

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/topic"
)

// Confidence assigned to each kind of generated card.
const (
	DefinitionConfidence  = 0.7
	EnumerationConfidence = 0.6
	HeadingConfidence     = 0.5
)

const (
	minBullets     = 3
	summaryLen     = 200
	maxSummaryLen  = 220
	untitledTag    = "Untitled Section"
	keyPointsTitle = "Key points"
)

var (
	definitionRe = regexp.MustCompile(`([A-Za-z][A-Za-z0-9 \-]{3,40}) is (an?|the|a) [^.]{10,200}\.`)
	bulletRe     = regexp.MustCompile(`(?:^|\s)[•*-]\s+`)
)

// Synthesizer generates candidate cards from a section.
type Synthesizer struct {
	// NewID returns a fresh card id. Defaults to a random UUID.
	NewID func() string
}

// Synthesize applies the definition, enumeration and heading rules to the
// section, in that order. Each rule yields at most one card.
func (s Synthesizer) Synthesize(section domain.RawSection, documentName string) []domain.GeneratedCard {
	topics := topic.Classify(section.Text)
	src := domain.Source{
		DocumentName: documentName,
		PageStart:    section.PageStart,
		PageEnd:      section.PageEnd,
	}
	tag := section.Title
	if tag == "" {
		tag = untitledTag
	}

	newCard := func(front, back string, tags []string, confidence float64) domain.GeneratedCard {
		return domain.GeneratedCard{
			ID:         s.id(),
			Front:      front,
			Back:       back,
			Topics:     append([]domain.Topic(nil), topics...),
			Tags:       tags,
			Source:     src,
			Confidence: confidence,
		}
	}

	var cards []domain.GeneratedCard

	if m := definitionRe.FindStringSubmatch(section.Text); m != nil {
		cards = append(cards, newCard("Define: "+m[1], m[0], []string{tag}, DefinitionConfidence))
	}

	if items := bulletItems(section.Text); len(items) >= minBullets {
		title := section.Title
		if title == "" {
			title = keyPointsTitle
		}
		lines := make([]string, len(items))
		for i, item := range items {
			lines[i] = "• " + item
		}
		cards = append(cards, newCard("List the key points: "+title, strings.Join(lines, "\n"), []string{tag}, EnumerationConfidence))
	}

	if section.Title != "" {
		cards = append(cards, newCard("What is "+section.Title+"?", Summarize(section.Text), []string{section.Title}, HeadingConfidence))
	}

	return cards
}

func (s Synthesizer) id() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// bulletItems returns the content following each bullet marker. An item runs
// until the next marker or the end of its line.
func bulletItems(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		locs := bulletRe.FindAllStringIndex(line, -1)
		for i, loc := range locs {
			end := len(line)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			if item := strings.TrimSpace(line[loc[1]:end]); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

// Summarize returns the first sentence of text. Without a sentence boundary
// the first 200 characters are used. Summaries longer than 220 characters are
// cut to 200 and marked with an ellipsis.
func Summarize(text string) string {
	summary, _, found := strings.Cut(text, ". ")
	if !found || summary == "" {
		summary = truncate(text, summaryLen)
	}
	if len([]rune(summary)) > maxSummaryLen {
		summary = truncate(summary, summaryLen) + "…"
	}
	return summary
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
