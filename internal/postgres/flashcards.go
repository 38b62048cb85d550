package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// FlashcardRow mirrors the flashcards table.
type FlashcardRow struct {
	ID           uuid.UUID
	Front        string
	Back         string
	EaseFactor   float64
	IntervalDays int32
	Repetitions  int32
	NextReview   pgtype.Timestamptz
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// InsertFlashcardParams holds the arguments for InsertFlashcard.
type InsertFlashcardParams struct {
	ID           uuid.UUID
	Front        string
	Back         string
	EaseFactor   float64
	IntervalDays int32
	Repetitions  int32
	NextReview   pgtype.Timestamptz
}

const insertFlashcard = `
INSERT INTO flashcards (id, front, back, ease_factor, interval_days, repetitions, next_review)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (front) DO NOTHING
`

// InsertFlashcard adds a new card. Duplicate fronts are silently skipped,
// matching the generate-then-dedupe behavior of the flashcard engine.
func (q *Queries) InsertFlashcard(ctx context.Context, arg InsertFlashcardParams) error {
	_, err := q.pool.Exec(ctx, insertFlashcard,
		arg.ID, arg.Front, arg.Back, arg.EaseFactor, arg.IntervalDays, arg.Repetitions, arg.NextReview)
	if err != nil {
		return fmt.Errorf("inserting flashcard: %w", err)
	}
	return nil
}

const selectFlashcard = `
SELECT id, front, back, ease_factor, interval_days, repetitions, next_review, created_at, updated_at
FROM flashcards
`

// ListFlashcards returns all cards, oldest first.
func (q *Queries) ListFlashcards(ctx context.Context) ([]FlashcardRow, error) {
	return q.queryFlashcards(ctx, selectFlashcard+` ORDER BY created_at`)
}

// ListDueFlashcards returns cards whose next review is at or before now,
// most overdue first.
func (q *Queries) ListDueFlashcards(ctx context.Context, now pgtype.Timestamptz) ([]FlashcardRow, error) {
	return q.queryFlashcards(ctx,
		selectFlashcard+` WHERE next_review <= $1 ORDER BY next_review`, now)
}

// GetFlashcard fetches a single card by ID.
func (q *Queries) GetFlashcard(ctx context.Context, id uuid.UUID) (FlashcardRow, error) {
	rows, err := q.queryFlashcards(ctx, selectFlashcard+` WHERE id = $1`, id)
	if err != nil {
		return FlashcardRow{}, err
	}
	if len(rows) == 0 {
		return FlashcardRow{}, fmt.Errorf("flashcard %s: %w", id, ErrNotFound)
	}
	return rows[0], nil
}

// GetFlashcardByFront fetches a single card by its front text.
func (q *Queries) GetFlashcardByFront(ctx context.Context, front string) (FlashcardRow, error) {
	rows, err := q.queryFlashcards(ctx, selectFlashcard+` WHERE front = $1`, front)
	if err != nil {
		return FlashcardRow{}, err
	}
	if len(rows) == 0 {
		return FlashcardRow{}, fmt.Errorf("flashcard %q: %w", front, ErrNotFound)
	}
	return rows[0], nil
}

// ListFlashcardFronts returns the front text of every stored card.
func (q *Queries) ListFlashcardFronts(ctx context.Context) ([]string, error) {
	rows, err := q.pool.Query(ctx, `SELECT front FROM flashcards`)
	if err != nil {
		return nil, fmt.Errorf("listing flashcard fronts: %w", err)
	}
	defer rows.Close()

	var fronts []string
	for rows.Next() {
		var front string
		if err := rows.Scan(&front); err != nil {
			return nil, fmt.Errorf("scanning front: %w", err)
		}
		fronts = append(fronts, front)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading fronts: %w", err)
	}
	return fronts, nil
}

// UpdateFlashcardReviewParams holds the post-review scheduling state.
type UpdateFlashcardReviewParams struct {
	ID           uuid.UUID
	EaseFactor   float64
	IntervalDays int32
	Repetitions  int32
	NextReview   pgtype.Timestamptz
}

const updateFlashcardReview = `
UPDATE flashcards
SET ease_factor = $2, interval_days = $3, repetitions = $4, next_review = $5, updated_at = now()
WHERE id = $1
`

// UpdateFlashcardReview persists the scheduler output for a reviewed card.
func (q *Queries) UpdateFlashcardReview(ctx context.Context, arg UpdateFlashcardReviewParams) error {
	tag, err := q.pool.Exec(ctx, updateFlashcardReview,
		arg.ID, arg.EaseFactor, arg.IntervalDays, arg.Repetitions, arg.NextReview)
	if err != nil {
		return fmt.Errorf("updating flashcard review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("flashcard %s: %w", arg.ID, ErrNotFound)
	}
	return nil
}

// queryFlashcards runs a flashcard SELECT and scans all rows.
func (q *Queries) queryFlashcards(ctx context.Context, sql string, args ...any) ([]FlashcardRow, error) {
	rows, err := q.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying flashcards: %w", err)
	}
	defer rows.Close()

	var results []FlashcardRow
	for rows.Next() {
		var r FlashcardRow
		if err := rows.Scan(&r.ID, &r.Front, &r.Back, &r.EaseFactor,
			&r.IntervalDays, &r.Repetitions, &r.NextReview, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning flashcard row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading flashcard rows: %w", err)
	}
	return results, nil
}
