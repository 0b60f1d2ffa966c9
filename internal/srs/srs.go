// Package srs schedules card reviews with an SM-2 style ease factor.
package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

// Confidence is the learner's self-rating of a review, from 1 to 4.
type Confidence int

const (
	NoIdea     Confidence = 1
	Unsure     Confidence = 2
	FairlySure Confidence = 3
	Certain    Confidence = 4
)

// IsValid reports whether c is between NoIdea and Certain.
func (c Confidence) IsValid() bool {
	return c >= NoIdea && c <= Certain
}

// Params holds the parameters of the scheduler.
type Params struct {
	InitialEase          float64 // ease factor of a new card
	MinEase              float64 // ease factor never drops below this
	FirstSuccessInterval int     // days after the first correct review of a 1-day card
	MaxInterval          int     // longest interval in days
	FailPenalty          float64 // ease factor lost on a miss
	ConfidenceWeight     float64 // ease change per confidence point away from 2.5
}

// DefaultParams returns the standard scheduling parameters.
func DefaultParams() *Params {
	return &Params{
		InitialEase:          domain.DefaultEaseFactor,
		MinEase:              1.3,
		FirstSuccessInterval: 6,
		MaxInterval:          180,
		FailPenalty:          0.2,
		ConfidenceWeight:     0.08,
	}
}

// State is the scheduling state of a card before a review.
type State struct {
	Interval   int
	EaseFactor float64
}

// Result is the scheduling state after a review.
type Result struct {
	Interval   int
	EaseFactor float64
	NextReview time.Time
}

// Schedule computes the next interval, ease factor and review date. A miss
// resets the interval to one day and ignores confidence.
func (p *Params) Schedule(state State, correct bool, confidence Confidence, now time.Time) (Result, error) {
	if !confidence.IsValid() {
		return Result{}, fmt.Errorf("%w: confidence %d not in 1-4", domain.ErrValidation, int(confidence))
	}

	interval := state.Interval
	ease := state.EaseFactor

	if correct {
		if interval == 1 {
			interval = p.FirstSuccessInterval
		} else {
			interval = int(math.Round(float64(interval) * ease))
		}
		modifier := (float64(confidence) - 2.5) * p.ConfidenceWeight
		ease = math.Max(p.MinEase, ease+modifier)
	} else {
		interval = 1
		ease = math.Max(p.MinEase, ease-p.FailPenalty)
	}

	interval = max(1, min(interval, p.MaxInterval))

	return Result{
		Interval:   interval,
		EaseFactor: ease,
		NextReview: NextReviewDate(now, interval),
	}, nil
}

// NextReviewDate returns midnight, in now's location, interval days after now.
func NextReviewDate(now time.Time, interval int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+interval, 0, 0, 0, 0, now.Location())
}

// ShouldInterleave reports whether a card has been answered correctly often
// enough to be mixed with cards from other topics.
func ShouldInterleave(correctCount int) bool {
	return correctCount >= 3
}
