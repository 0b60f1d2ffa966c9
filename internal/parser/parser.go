// Package parser reads hand-written card decks.
//
// A deck is plain text where each card starts with "Q:" (front), followed by
// "A:" (back), an optional "C:" (topic) and an optional "N:" (notes). Any block
// may span several lines.
// Cards end at the next "Q:" or at a "---" separator line.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	frontPrefix = "Q:"
	backPrefix  = "A:"
	topicPrefix = "C:"
	notesPrefix = "N:"
	separator   = "---"
)

// Entry is one card read from a deck.
type Entry struct {
	Front string
	Back  string
	Topic string
	Notes string
}

type field int

const (
	none field = iota
	front
	back
	topic
	notes
)

// ParseFile reads the deck at path.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a deck from r. Cards without a front or back are dropped.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)

	var (
		entries []Entry
		current Entry
		block   []string
		reading = none
	)

	flushBlock := func() {
		if reading == none || len(block) == 0 {
			block = nil
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch reading {
		case front:
			current.Front = content
		case back:
			current.Back = content
		case topic:
			current.Topic = content
		case notes:
			current.Notes = content
		}
		block = nil
	}

	finishEntry := func() {
		flushBlock()
		if current.Front != "" && current.Back != "" {
			entries = append(entries, current)
		}
		current = Entry{}
		reading = none
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			finishEntry()
			continue
		}

		next, rest, ok := splitPrefix(line)
		if !ok {
			if reading != none {
				block = append(block, line)
			}
			continue
		}

		if next == front {
			finishEntry()
		} else {
			flushBlock()
		}
		reading = next
		block = append(block, rest)
	}

	finishEntry()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// splitPrefix reports which field line starts and returns the remainder,
// without one optional space after the prefix.
func splitPrefix(line string) (field, string, bool) {
	for _, p := range []struct {
		prefix string
		f      field
	}{
		{frontPrefix, front},
		{backPrefix, back},
		{topicPrefix, topic},
		{notesPrefix, notes},
	} {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return p.f, strings.TrimPrefix(rest, " "), true
		}
	}
	return none, "", false
}
