// Package study holds the learner's cards, review history and sessions, and
// applies reviews to them. State is loaded and saved explicitly through a Store.
package study

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/fingerprint"
	"github.com/conorfennell/studydeck/internal/mastery"
	"github.com/conorfennell/studydeck/internal/parser"
	"github.com/conorfennell/studydeck/internal/srs"
)

// Store loads and saves the three persisted collections. LoadCards returns
// nil when cards have never been saved. SaveReview writes cards and review
// logs together or not at all.
type Store interface {
	LoadCards(ctx context.Context) ([]domain.Card, error)
	SaveCards(ctx context.Context, cards []domain.Card) error
	LoadReviewLogs(ctx context.Context) ([]domain.ReviewLog, error)
	SaveReviewLogs(ctx context.Context, logs []domain.ReviewLog) error
	SaveReview(ctx context.Context, cards []domain.Card, logs []domain.ReviewLog) error
	LoadSessions(ctx context.Context) ([]domain.Session, error)
	SaveSessions(ctx context.Context, sessions []domain.Session) error
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithStarterDeck sets the cards given to a learner whose store has never
// held any cards.
func WithStarterDeck(inputs []CardInput) Option {
	return func(s *Service) { s.starter = inputs }
}

// WithIDs replaces the random id generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// Service is the in-memory study state together with the operations on it.
// It is safe for concurrent use.
type Service struct {
	store    Store
	params   *srs.Params
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	starter  []CardInput

	mu       sync.Mutex
	cards    []domain.Card
	logs     []domain.ReviewLog
	sessions []domain.Session
}

// NewService creates a service backed by store. Call Load before use.
func NewService(store Store, params *srs.Params, opts ...Option) *Service {
	s := &Service{
		store:    store,
		params:   params,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the stored collections.
func (s *Service) Load(ctx context.Context) error {
	cards, err := s.store.LoadCards(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cards: %w", err)
	}
	logs, err := s.store.LoadReviewLogs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load review logs: %w", err)
	}
	sessions, err := s.store.LoadSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	if cards == nil && len(s.starter) > 0 {
		if cards, err = s.seed(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards, s.logs, s.sessions = cards, logs, sessions
	slog.Debug("Study state loaded", "cards", len(cards), "review_logs", len(logs), "sessions", len(sessions))
	return nil
}

// seed stores the starter deck. Ids follow the deck order.
func (s *Service) seed(ctx context.Context) ([]domain.Card, error) {
	now := s.now()
	cards := make([]domain.Card, 0, len(s.starter))
	for i, in := range s.starter {
		if err := s.check(in); err != nil {
			return nil, err
		}
		card := domain.NewCard(fmt.Sprintf("card-%d", i), in.Front, in.Back, in.Topic, now)
		card.Notes = in.Notes
		cards = append(cards, card)
	}
	if err := s.store.SaveCards(ctx, cards); err != nil {
		return nil, fmt.Errorf("failed to save starter deck: %w", err)
	}
	slog.Info("Starter deck stored", "cards", len(cards))
	return cards, nil
}

// ReviewInput is one answered card.
type ReviewInput struct {
	CardID     string `json:"cardId" validate:"required"`
	Correct    bool   `json:"correct"`
	Confidence int    `json:"confidence" validate:"min=1,max=4"`
	TimeSpent  int    `json:"timeSpent" validate:"min=0"` // seconds
}

// SubmitReview schedules the card, updates its counters and mastery and
// appends a review log. An unknown card leaves the state untouched.
func (s *Service) SubmitReview(ctx context.Context, in ReviewInput) (domain.Card, error) {
	if err := s.check(in); err != nil {
		return domain.Card{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(in.CardID)
	if idx < 0 {
		slog.Warn("Review for unknown card ignored", "card_id", in.CardID)
		return domain.Card{}, fmt.Errorf("%w: %s", domain.ErrNotFound, in.CardID)
	}

	now := s.now()
	card := s.cards[idx]
	res, err := s.params.Schedule(srs.State{Interval: card.Interval, EaseFactor: card.EaseFactor}, in.Correct, srs.Confidence(in.Confidence), now)
	if err != nil {
		return domain.Card{}, err
	}

	card.Interval = res.Interval
	card.EaseFactor = res.EaseFactor
	card.NextReview = res.NextReview
	card.ReviewCount++
	if in.Correct {
		card.CorrectCount++
	}
	card.Mastery = mastery.CardMastery(card.CorrectCount, card.ReviewCount)
	card.LastReviewed = &now

	cards := slices.Clone(s.cards)
	cards[idx] = card
	logs := append(slices.Clone(s.logs), domain.ReviewLog{
		CardID:     card.ID,
		Timestamp:  now,
		Correct:    in.Correct,
		Confidence: in.Confidence,
		TimeSpent:  in.TimeSpent,
	})

	if err := s.store.SaveReview(ctx, cards, logs); err != nil {
		return domain.Card{}, fmt.Errorf("failed to save review: %w", err)
	}
	s.cards, s.logs = cards, logs

	slog.Info("Card reviewed",
		"card_id", card.ID,
		"correct", in.Correct,
		"interval", card.Interval,
		"ease_factor", card.EaseFactor,
		"next_review", card.NextReview.Format(time.DateOnly),
	)
	return card, nil
}

// CardInput describes a card entered by hand or accepted from ingestion.
type CardInput struct {
	Front      string `json:"front" validate:"required"`
	Back       string `json:"back" validate:"required"`
	Topic      string `json:"topic"`
	Notes      string `json:"notes"`
	Difficulty int    `json:"difficulty" validate:"omitempty,min=1,max=3"`
}

// FromEntries converts parsed deck entries into card inputs.
func FromEntries(entries []parser.Entry) []CardInput {
	inputs := make([]CardInput, len(entries))
	for i, e := range entries {
		inputs[i] = CardInput{Front: e.Front, Back: e.Back, Topic: e.Topic, Notes: e.Notes}
	}
	return inputs
}

// AddCard stores a new card that is due immediately.
func (s *Service) AddCard(ctx context.Context, in CardInput) (domain.Card, error) {
	added, err := s.add(ctx, []CardInput{in}, false)
	if err != nil {
		return domain.Card{}, err
	}
	return added[0], nil
}

// Import stores cards whose content is not already present and returns the
// ones that were added.
func (s *Service) Import(ctx context.Context, inputs []CardInput) ([]domain.Card, error) {
	return s.add(ctx, inputs, true)
}

// AcceptGenerated turns generated cards into stored cards. The first topic
// becomes the card topic and the tags become its notes. Duplicates are skipped.
func (s *Service) AcceptGenerated(ctx context.Context, generated []domain.GeneratedCard) ([]domain.Card, error) {
	inputs := make([]CardInput, 0, len(generated))
	for _, g := range generated {
		topic := string(domain.Other)
		if len(g.Topics) > 0 {
			topic = string(g.Topics[0])
		}
		inputs = append(inputs, CardInput{
			Front: g.Front,
			Back:  g.Back,
			Topic: topic,
			Notes: strings.Join(g.Tags, ", "),
		})
	}
	return s.add(ctx, inputs, true)
}

func (s *Service) add(ctx context.Context, inputs []CardInput, dedupe bool) ([]domain.Card, error) {
	for _, in := range inputs {
		if err := s.check(in); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	if dedupe {
		for _, c := range s.cards {
			seen[fingerprint.Hash(c.Front, c.Back)] = true
		}
	}

	now := s.now()
	added := []domain.Card{}
	for _, in := range inputs {
		if dedupe {
			hash := fingerprint.Hash(in.Front, in.Back)
			if seen[hash] {
				slog.Debug("Duplicate card skipped", "front", in.Front)
				continue
			}
			seen[hash] = true
		}
		card := domain.NewCard(s.newID(), in.Front, in.Back, in.Topic, now)
		card.Notes = in.Notes
		if in.Difficulty != 0 {
			card.Difficulty = in.Difficulty
		}
		added = append(added, card)
	}
	if len(added) == 0 {
		return added, nil
	}

	cards := append(slices.Clone(s.cards), added...)
	if err := s.store.SaveCards(ctx, cards); err != nil {
		return nil, fmt.Errorf("failed to save cards: %w", err)
	}
	s.cards = cards
	slog.Info("Cards added", "added", len(added), "skipped", len(inputs)-len(added))
	return added, nil
}

// CardUpdate holds the editable fields of a card; nil fields are unchanged.
type CardUpdate struct {
	Front      *string `json:"front" validate:"omitempty,min=1"`
	Back       *string `json:"back" validate:"omitempty,min=1"`
	Topic      *string `json:"topic"`
	Notes      *string `json:"notes"`
	Difficulty *int    `json:"difficulty" validate:"omitempty,min=1,max=3"`
}

// UpdateCard edits a card's content. Scheduling state is never touched.
func (s *Service) UpdateCard(ctx context.Context, id string, u CardUpdate) (domain.Card, error) {
	if err := s.check(u); err != nil {
		return domain.Card{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		slog.Warn("Update for unknown card ignored", "card_id", id)
		return domain.Card{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	card := s.cards[idx]
	if u.Front != nil {
		card.Front = *u.Front
	}
	if u.Back != nil {
		card.Back = *u.Back
	}
	if u.Topic != nil {
		card.Topic = *u.Topic
	}
	if u.Notes != nil {
		card.Notes = *u.Notes
	}
	if u.Difficulty != nil {
		card.Difficulty = *u.Difficulty
	}

	cards := slices.Clone(s.cards)
	cards[idx] = card
	if err := s.store.SaveCards(ctx, cards); err != nil {
		return domain.Card{}, fmt.Errorf("failed to save cards: %w", err)
	}
	s.cards = cards
	return card, nil
}

// SessionInput is a finished study session.
type SessionInput struct {
	Date           time.Time `json:"date"`
	CardsReviewed  int       `json:"cardsReviewed" validate:"min=0"`
	CorrectAnswers int       `json:"correctAnswers" validate:"min=0,ltefield=CardsReviewed"`
	Duration       int       `json:"duration" validate:"min=0"` // seconds
}

// RecordSession appends a study session. A zero date means now.
func (s *Service) RecordSession(ctx context.Context, in SessionInput) (domain.Session, error) {
	if err := s.check(in); err != nil {
		return domain.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	session := domain.Session{
		ID:             s.newID(),
		Date:           date,
		CardsReviewed:  in.CardsReviewed,
		CorrectAnswers: in.CorrectAnswers,
		Duration:       in.Duration,
	}

	sessions := append(slices.Clone(s.sessions), session)
	if err := s.store.SaveSessions(ctx, sessions); err != nil {
		return domain.Session{}, fmt.Errorf("failed to save sessions: %w", err)
	}
	s.sessions = sessions
	return session, nil
}

// Cards returns a copy of all cards.
func (s *Service) Cards() []domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cards)
}

// DueCards returns the cards due now, earliest first. Cards the learner
// already knows well are mixed across topics and placed after the rest.
func (s *Service) DueCards() []domain.Card {
	s.mu.Lock()
	now := s.now()
	var due []domain.Card
	for _, c := range s.cards {
		if c.IsDue(now) {
			due = append(due, c)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextReview.Before(due[j].NextReview)
	})

	var fresh, known []domain.Card
	for _, c := range due {
		if srs.ShouldInterleave(c.CorrectCount) {
			known = append(known, c)
		} else {
			fresh = append(fresh, c)
		}
	}
	out := append(make([]domain.Card, 0, len(due)), fresh...)
	return append(out, interleave(known)...)
}

// interleave orders cards round-robin by topic, keeping the order within each
// topic. Topics take turns in the order they first appear.
func interleave(cards []domain.Card) []domain.Card {
	var topics []string
	byTopic := make(map[string][]domain.Card)
	for _, c := range cards {
		if _, ok := byTopic[c.Topic]; !ok {
			topics = append(topics, c.Topic)
		}
		byTopic[c.Topic] = append(byTopic[c.Topic], c)
	}

	out := make([]domain.Card, 0, len(cards))
	for len(out) < len(cards) {
		for _, t := range topics {
			if queue := byTopic[t]; len(queue) > 0 {
				out = append(out, queue[0])
				byTopic[t] = queue[1:]
			}
		}
	}
	return out
}

// Progress summarises mastery across all cards.
func (s *Service) Progress() mastery.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mastery.Progress(s.cards)
}

// Analytics summarises the last 30 days of reviews.
func (s *Service) Analytics() mastery.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mastery.Analytics(s.logs, s.sessions, s.now())
}

// Activity returns review counts per day.
func (s *Service) Activity() []mastery.DayCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mastery.Activity(s.logs)
}

// Streak returns the current run of study days.
func (s *Service) Streak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mastery.Streak(s.sessions, s.now())
}

func (s *Service) indexOf(id string) int {
	return slices.IndexFunc(s.cards, func(c domain.Card) bool { return c.ID == id })
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}
