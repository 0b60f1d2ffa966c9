// Package topic assigns content categories to free text using keyword rules.
package topic

import (
	"sort"
	"strings"

	"github.com/conorfennell/studydeck/internal/domain"
)

// maxTopics is the most topics Classify will return.
const maxTopics = 2

type rule struct {
	topic    domain.Topic
	keywords []string
}

// rules are evaluated in order; the order also breaks score ties.
var rules = []rule{
	{domain.Definitions, []string{" is a ", " defined as ", " refers to ", " are called "}},
	{domain.Examples, []string{"for example", "e.g.", "such as"}},
	{domain.Processes, []string{"process", "step", "first", "then", "finally", "workflow"}},
	{domain.Lists, []string{"•", "-", "*", "include", "list", "the following"}},
	{domain.Compare, []string{" vs ", " versus ", "compare", "difference", "similarities"}},
}

type scored struct {
	topic domain.Topic
	score int
}

// Classify returns up to two topics for text, best first. Each keyword counts
// once no matter how often it appears. Text matching no rule yields [Other].
func Classify(text string) []domain.Topic {
	lc := strings.ToLower(text)

	var hits []scored
	for _, r := range rules {
		score := 0
		for _, kw := range r.keywords {
			if strings.Contains(lc, kw) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{topic: r.topic, score: score})
		}
	}

	if len(hits) == 0 {
		return []domain.Topic{domain.Other}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > maxTopics {
		hits = hits[:maxTopics]
	}

	topics := make([]domain.Topic, len(hits))
	for i, h := range hits {
		topics[i] = h.topic
	}
	return topics
}
