package flashcard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/studyforge/studyai/internal/log"
	"github.com/studyforge/studyai/internal/postgres"
)

// Card is one stored flashcard with its scheduling state.
type Card struct {
	ID           uuid.UUID `json:"id"`
	Front        string    `json:"front"`
	Back         string    `json:"back"`
	EaseFactor   float64   `json:"ease_factor"`
	IntervalDays int       `json:"interval_days"`
	Repetitions  int       `json:"repetitions"`
	NextReview   time.Time `json:"next_review"`
	CreatedAt    time.Time `json:"created_at"`
}

// Querier is the set of flashcard queries the store depends on.
type Querier interface {
	InsertFlashcard(ctx context.Context, arg postgres.InsertFlashcardParams) error
	ListFlashcards(ctx context.Context) ([]postgres.FlashcardRow, error)
	ListDueFlashcards(ctx context.Context, now pgtype.Timestamptz) ([]postgres.FlashcardRow, error)
	GetFlashcard(ctx context.Context, id uuid.UUID) (postgres.FlashcardRow, error)
	ListFlashcardFronts(ctx context.Context) ([]string, error)
	UpdateFlashcardReview(ctx context.Context, arg postgres.UpdateFlashcardReviewParams) error
}

// Store persists cards and applies review scheduling.
type Store struct {
	queries Querier
	logger  log.Logger
	now     func() time.Time
}

// NewStore creates a flashcard store.
func NewStore(queries Querier, logger log.Logger) *Store {
	return &Store{queries: queries, logger: logger, now: time.Now}
}

// Add stores a new card, due immediately. Cards whose front already
// exists are skipped by the database.
func (s *Store) Add(ctx context.Context, front, back string) (Card, error) {
	now := s.now().UTC()
	sched := NewSchedule(now)
	card := Card{
		ID:           uuid.New(),
		Front:        front,
		Back:         back,
		EaseFactor:   sched.EaseFactor,
		IntervalDays: sched.IntervalDays,
		Repetitions:  sched.Repetitions,
		NextReview:   sched.NextReview,
		CreatedAt:    now,
	}

	err := s.queries.InsertFlashcard(ctx, postgres.InsertFlashcardParams{
		ID:           card.ID,
		Front:        card.Front,
		Back:         card.Back,
		EaseFactor:   card.EaseFactor,
		IntervalDays: int32(card.IntervalDays),
		Repetitions:  int32(card.Repetitions),
		NextReview:   pgtype.Timestamptz{Time: card.NextReview, Valid: true},
	})
	if err != nil {
		return Card{}, fmt.Errorf("adding card %q: %w", front, err)
	}
	return card, nil
}

// List returns every stored card.
func (s *Store) List(ctx context.Context) ([]Card, error) {
	rows, err := s.queries.ListFlashcards(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	return rowsToCards(rows), nil
}

// Due returns cards whose next review is at or before now, most overdue
// first.
func (s *Store) Due(ctx context.Context) ([]Card, error) {
	rows, err := s.queries.ListDueFlashcards(ctx,
		pgtype.Timestamptz{Time: s.now().UTC(), Valid: true})
	if err != nil {
		return nil, fmt.Errorf("listing due cards: %w", err)
	}
	return rowsToCards(rows), nil
}

// Fronts returns the front text of every stored card, used to dedupe
// freshly generated cards.
func (s *Store) Fronts(ctx context.Context) ([]string, error) {
	fronts, err := s.queries.ListFlashcardFronts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing card fronts: %w", err)
	}
	return fronts, nil
}

// Review grades a card and persists the new schedule, returning the
// updated card.
func (s *Store) Review(ctx context.Context, id uuid.UUID, grade Grade) (Card, error) {
	row, err := s.queries.GetFlashcard(ctx, id)
	if err != nil {
		return Card{}, fmt.Errorf("loading card: %w", err)
	}

	now := s.now().UTC()
	sched := Review(Schedule{
		EaseFactor:   row.EaseFactor,
		IntervalDays: int(row.IntervalDays),
		Repetitions:  int(row.Repetitions),
		NextReview:   row.NextReview.Time,
	}, grade, now)

	err = s.queries.UpdateFlashcardReview(ctx, postgres.UpdateFlashcardReviewParams{
		ID:           id,
		EaseFactor:   sched.EaseFactor,
		IntervalDays: int32(sched.IntervalDays),
		Repetitions:  int32(sched.Repetitions),
		NextReview:   pgtype.Timestamptz{Time: sched.NextReview, Valid: true},
	})
	if err != nil {
		return Card{}, fmt.Errorf("saving review: %w", err)
	}

	s.logger.Debug("card reviewed",
		"card_id", id,
		"grade", grade,
		"interval_days", sched.IntervalDays,
		"next_review", sched.NextReview,
	)

	card := rowToCard(row)
	card.EaseFactor = sched.EaseFactor
	card.IntervalDays = sched.IntervalDays
	card.Repetitions = sched.Repetitions
	card.NextReview = sched.NextReview
	return card, nil
}

func rowsToCards(rows []postgres.FlashcardRow) []Card {
	cards := make([]Card, len(rows))
	for i, r := range rows {
		cards[i] = rowToCard(r)
	}
	return cards
}

func rowToCard(r postgres.FlashcardRow) Card {
	return Card{
		ID:           r.ID,
		Front:        r.Front,
		Back:         r.Back,
		EaseFactor:   r.EaseFactor,
		IntervalDays: int(r.IntervalDays),
		Repetitions:  int(r.Repetitions),
		NextReview:   r.NextReview.Time,
		CreatedAt:    r.CreatedAt.Time,
	}
}
