// Package deck bundles the starter deck given to a learner with no cards.
package deck

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/conorfennell/studydeck/internal/parser"
)

//go:embed finite_automata.md
var finiteAutomata string

// Starter returns the finite automata starter deck.
func Starter() ([]parser.Entry, error) {
	entries, err := parser.Parse(strings.NewReader(finiteAutomata))
	if err != nil {
		return nil, fmt.Errorf("failed to parse starter deck: %w", err)
	}
	return entries, nil
}
