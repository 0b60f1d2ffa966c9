package srs

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

var now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func TestSchedule(t *testing.T) {
	params := DefaultParams()

	testCases := []struct {
		name             string
		state            State
		correct          bool
		confidence       Confidence
		expectedInterval int
		expectedEase     float64
	}{
		{"Miss resets interval", State{50, 2.5}, false, Certain, 1, 2.3},
		{"First success bumps to six days", State{1, 2.5}, true, FairlySure, 6, 2.54},
		{"Success multiplies by ease", State{6, 2.5}, true, Certain, 15, 2.62},
		{"Low confidence lowers ease", State{6, 2.5}, true, NoIdea, 15, 2.38},
		{"Interval capped at 180", State{100, 2.5}, true, Certain, 180, 2.62},
		{"Ease floor on success", State{10, 1.3}, true, NoIdea, 13, 1.3},
		{"Ease floor on miss", State{10, 1.4}, false, Unsure, 1, 1.3},
		{"Zero interval floored to one", State{0, 2.5}, true, FairlySure, 1, 2.54},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := params.Schedule(tc.state, tc.correct, tc.confidence, now)
			if err != nil {
				t.Fatalf("Schedule() returned an unexpected error: %v", err)
			}
			if res.Interval != tc.expectedInterval {
				t.Errorf("Expected interval %d, but got %d", tc.expectedInterval, res.Interval)
			}
			if math.Abs(res.EaseFactor-tc.expectedEase) > 1e-9 {
				t.Errorf("Expected ease factor %.2f, but got %.4f", tc.expectedEase, res.EaseFactor)
			}
			expectedNext := time.Date(2025, 6, 15+tc.expectedInterval, 0, 0, 0, 0, time.UTC)
			if !res.NextReview.Equal(expectedNext) {
				t.Errorf("Expected next review %v, but got %v", expectedNext, res.NextReview)
			}
		})
	}
}

func TestScheduleRejectsInvalidConfidence(t *testing.T) {
	params := DefaultParams()
	for _, c := range []Confidence{0, 5, -1} {
		_, err := params.Schedule(State{6, 2.5}, true, c, now)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Confidence %d: expected ErrValidation, but got %v", c, err)
		}
	}
}

func TestScheduleBounds(t *testing.T) {
	params := DefaultParams()
	for interval := 0; interval <= 200; interval += 7 {
		for _, ease := range []float64{1.3, 1.5, 2.5, 4.0} {
			for _, correct := range []bool{true, false} {
				for c := NoIdea; c <= Certain; c++ {
					res, err := params.Schedule(State{interval, ease}, correct, c, now)
					if err != nil {
						t.Fatalf("Schedule() returned an unexpected error: %v", err)
					}
					if res.Interval < 1 || res.Interval > 180 {
						t.Errorf("Interval %d out of bounds for state {%d, %.1f}", res.Interval, interval, ease)
					}
					if res.EaseFactor < 1.3 {
						t.Errorf("Ease factor %.2f below floor for state {%d, %.1f}", res.EaseFactor, interval, ease)
					}
				}
			}
		}
	}
}

func TestNextReviewDate(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	late := time.Date(2025, 12, 30, 23, 45, 0, 0, loc)

	got := NextReviewDate(late, 6)
	expected := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)
	if !got.Equal(expected) {
		t.Errorf("Expected %v, but got %v", expected, got)
	}
	if got.Hour() != 0 || got.Minute() != 0 || got.Location() != loc {
		t.Errorf("Expected midnight in the caller's zone, but got %v", got)
	}
}

func TestShouldInterleave(t *testing.T) {
	if ShouldInterleave(2) {
		t.Error("Expected no interleaving below three correct answers")
	}
	if !ShouldInterleave(3) {
		t.Error("Expected interleaving at three correct answers")
	}
}
