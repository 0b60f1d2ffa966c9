// Package fingerprint identifies cards by their content, so the same card
// imported twice is only stored once.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize lowercases and trims both sides of a card and joins them with a
// newline, so "question" and "answer" cannot run together.
func Normalize(front, back string) string {
	clean := func(part string) string {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		return strings.TrimSpace(strings.ToLower(p))
	}
	return clean(front) + "\n" + clean(back)
}

// Hash returns the SHA-256 of the normalized card as a hex string.
func Hash(front, back string) string {
	sum := sha256.Sum256([]byte(Normalize(front, back)))
	return fmt.Sprintf("%x", sum)
}
