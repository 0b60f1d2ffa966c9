package domain

import "time"

// Default scheduling state for a card that has never been reviewed.
const (
	DefaultInterval   = 1
	DefaultEaseFactor = 2.5
)

// Card is a reviewable flashcard together with its scheduling state.
type Card struct {
	ID           string     `json:"id"`
	Front        string     `json:"front"`
	Back         string     `json:"back"`
	Topic        string     `json:"topic"`
	Notes        string     `json:"notes,omitempty"`
	Difficulty   int        `json:"difficulty"`
	Mastery      int        `json:"mastery"`
	NextReview   time.Time  `json:"nextReview"`
	Interval     int        `json:"interval"`
	EaseFactor   float64    `json:"easeFactor"`
	ReviewCount  int        `json:"reviewCount"`
	CorrectCount int        `json:"correctCount"`
	LastReviewed *time.Time `json:"lastReviewed,omitempty"`
}

// NewCard returns an unreviewed card that is due immediately.
func NewCard(id, front, back, topic string, now time.Time) Card {
	return Card{
		ID:         id,
		Front:      front,
		Back:       back,
		Topic:      topic,
		Difficulty: 1,
		NextReview: now,
		Interval:   DefaultInterval,
		EaseFactor: DefaultEaseFactor,
	}
}

// IsDue reports whether the card should be reviewed at now.
func (c Card) IsDue(now time.Time) bool {
	return !c.NextReview.After(now)
}

// ReviewLog records a single review event for a card.
// Confidence is the learner's self-rating:
// 1: No idea
// 2: Unsure
// 3: Fairly sure
// 4: Certain
type ReviewLog struct {
	CardID     string    `json:"cardId"`
	Timestamp  time.Time `json:"timestamp"`
	Correct    bool      `json:"correct"`
	Confidence int       `json:"confidence"`
	TimeSpent  int       `json:"timeSpent"` // seconds
}

// Session is one completed study sitting.
type Session struct {
	ID             string    `json:"id"`
	Date           time.Time `json:"date"`
	CardsReviewed  int       `json:"cardsReviewed"`
	CorrectAnswers int       `json:"correctAnswers"`
	Duration       int       `json:"duration"` // seconds
}
