// Package mastery derives progress statistics from cards, review logs and
// study sessions.
package mastery

import (
	"math"
	"sort"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

// MasteredThreshold is the card mastery at which a card counts as mastered.
const MasteredThreshold = 80

// analyticsWindow is how far back Analytics looks.
const analyticsWindow = 30 * 24 * time.Hour

// CardMastery returns the percentage of correct reviews, 0 for unreviewed cards.
func CardMastery(correctCount, reviewCount int) int {
	if reviewCount <= 0 {
		return 0
	}
	return clampPct(math.Round(float64(correctCount) / float64(reviewCount) * 100))
}

// TopicStats summarises the cards of one topic.
type TopicStats struct {
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Mastered   int    `json:"mastered"`
	MasteryPct int    `json:"mastery"`
}

// TopicMastery counts how many cards of topic are mastered.
func TopicMastery(cards []domain.Card, topic string) TopicStats {
	stats := TopicStats{Name: topic}
	for _, c := range cards {
		if c.Topic != topic {
			continue
		}
		stats.Total++
		if c.Mastery >= MasteredThreshold {
			stats.Mastered++
		}
	}
	stats.MasteryPct = percent(stats.Mastered, stats.Total)
	return stats
}

// Summary is the overall progress across all cards.
type Summary struct {
	TotalCards        int          `json:"totalCards"`
	Mastered          int          `json:"mastered"`
	Learning          int          `json:"learning"`
	New               int          `json:"new"`
	MasteryPercentage int          `json:"masteryPercentage"`
	Topics            []TopicStats `json:"topics"`
}

// Progress summarises cards by mastery. Topics are listed in the order they
// first appear.
func Progress(cards []domain.Card) Summary {
	s := Summary{TotalCards: len(cards), Topics: []TopicStats{}}
	seen := make(map[string]bool)
	for _, c := range cards {
		switch {
		case c.Mastery >= MasteredThreshold:
			s.Mastered++
		case c.Mastery > 0:
			s.Learning++
		}
		if c.ReviewCount == 0 {
			s.New++
		}
		if !seen[c.Topic] {
			seen[c.Topic] = true
			s.Topics = append(s.Topics, TopicMastery(cards, c.Topic))
		}
	}
	s.MasteryPercentage = percent(s.Mastered, s.TotalCards)
	return s
}

// Stats covers the reviews of the last 30 days.
type Stats struct {
	TotalReviews   int `json:"totalReviews"`
	CorrectReviews int `json:"correctReviews"`
	Accuracy       int `json:"accuracy"`
	StudyTime      int `json:"studyTime"` // minutes, estimated at 30 seconds per review
	CurrentStreak  int `json:"currentStreak"`
}

// Analytics computes review statistics for the 30 days before now.
func Analytics(logs []domain.ReviewLog, sessions []domain.Session, now time.Time) Stats {
	var s Stats
	for _, l := range logs {
		if now.Sub(l.Timestamp) > analyticsWindow {
			continue
		}
		s.TotalReviews++
		if l.Correct {
			s.CorrectReviews++
		}
	}
	s.Accuracy = percent(s.CorrectReviews, s.TotalReviews)
	s.StudyTime = int(math.Round(float64(s.TotalReviews) * 0.5))
	s.CurrentStreak = Streak(sessions, now)
	return s
}

// Streak counts consecutive calendar days, ending today, with at least one
// session. Days are taken in now's location.
func Streak(sessions []domain.Session, now time.Time) int {
	days := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		days[s.Date.In(now.Location()).Format(time.DateOnly)] = true
	}

	streak := 0
	for day := startOfDay(now); days[day.Format(time.DateOnly)]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// DayCount is the number of reviews on one day.
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

// Activity counts reviews per UTC day, oldest first.
func Activity(logs []domain.ReviewLog) []DayCount {
	counts := make(map[string]int)
	for _, l := range logs {
		counts[l.Timestamp.UTC().Format(time.DateOnly)]++
	}
	out := make([]DayCount, 0, len(counts))
	for date, n := range counts {
		out = append(out, DayCount{Date: date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return clampPct(math.Round(float64(part) / float64(total) * 100))
}

func clampPct(v float64) int {
	return int(math.Max(0, math.Min(100, v)))
}
