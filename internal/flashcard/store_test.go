package flashcard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyai/internal/log"
	"github.com/studyforge/studyai/internal/postgres"
)

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	cards map[uuid.UUID]postgres.FlashcardRow

	lastInsert postgres.InsertFlashcardParams
	lastUpdate postgres.UpdateFlashcardReviewParams
	lastDueAt  pgtype.Timestamptz
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{cards: make(map[uuid.UUID]postgres.FlashcardRow)}
}

func (m *mockQuerier) InsertFlashcard(_ context.Context, arg postgres.InsertFlashcardParams) error {
	m.lastInsert = arg
	m.cards[arg.ID] = postgres.FlashcardRow{
		ID:           arg.ID,
		Front:        arg.Front,
		Back:         arg.Back,
		EaseFactor:   arg.EaseFactor,
		IntervalDays: arg.IntervalDays,
		Repetitions:  arg.Repetitions,
		NextReview:   arg.NextReview,
	}
	return nil
}

func (m *mockQuerier) ListFlashcards(_ context.Context) ([]postgres.FlashcardRow, error) {
	var rows []postgres.FlashcardRow
	for _, r := range m.cards {
		rows = append(rows, r)
	}
	return rows, nil
}

func (m *mockQuerier) ListDueFlashcards(_ context.Context, now pgtype.Timestamptz) ([]postgres.FlashcardRow, error) {
	m.lastDueAt = now
	var rows []postgres.FlashcardRow
	for _, r := range m.cards {
		if !r.NextReview.Time.After(now.Time) {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (m *mockQuerier) GetFlashcard(_ context.Context, id uuid.UUID) (postgres.FlashcardRow, error) {
	r, ok := m.cards[id]
	if !ok {
		return postgres.FlashcardRow{}, postgres.ErrNotFound
	}
	return r, nil
}

func (m *mockQuerier) ListFlashcardFronts(_ context.Context) ([]string, error) {
	var fronts []string
	for _, r := range m.cards {
		fronts = append(fronts, r.Front)
	}
	return fronts, nil
}

func (m *mockQuerier) UpdateFlashcardReview(_ context.Context, arg postgres.UpdateFlashcardReviewParams) error {
	r, ok := m.cards[arg.ID]
	if !ok {
		return postgres.ErrNotFound
	}
	m.lastUpdate = arg
	r.EaseFactor = arg.EaseFactor
	r.IntervalDays = arg.IntervalDays
	r.Repetitions = arg.Repetitions
	r.NextReview = arg.NextReview
	m.cards[arg.ID] = r
	return nil
}

func newTestStore(q Querier, now time.Time) *Store {
	s := NewStore(q, log.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestStoreAdd(t *testing.T) {
	querier := newMockQuerier()
	store := newTestStore(querier, reviewTime)

	card, err := store.Add(context.Background(), "What is a pointer?", "A variable holding a memory address.")
	require.NoError(t, err)

	assert.Equal(t, DefaultEaseFactor, card.EaseFactor)
	assert.Zero(t, card.IntervalDays)
	assert.Equal(t, reviewTime, card.NextReview, "new cards are due immediately")
	assert.Equal(t, "What is a pointer?", querier.lastInsert.Front)
}

func TestStoreReview(t *testing.T) {
	querier := newMockQuerier()
	store := newTestStore(querier, reviewTime)

	card, err := store.Add(context.Background(), "front", "back")
	require.NoError(t, err)

	reviewed, err := store.Review(context.Background(), card.ID, GradeGood)
	require.NoError(t, err)

	assert.Equal(t, 1, reviewed.IntervalDays)
	assert.Equal(t, 1, reviewed.Repetitions)
	assert.Equal(t, reviewTime.AddDate(0, 0, 1), reviewed.NextReview)
	assert.Equal(t, int32(1), querier.lastUpdate.IntervalDays, "new schedule must be persisted")
}

func TestStoreReviewUnknownCard(t *testing.T) {
	store := newTestStore(newMockQuerier(), reviewTime)

	_, err := store.Review(context.Background(), uuid.New(), GradeGood)
	require.ErrorIs(t, err, postgres.ErrNotFound)
}

func TestStoreDue(t *testing.T) {
	querier := newMockQuerier()
	store := newTestStore(querier, reviewTime)

	due, err := store.Add(context.Background(), "due card", "back")
	require.NoError(t, err)

	// Push the second card into the future.
	future, err := store.Add(context.Background(), "future card", "back")
	require.NoError(t, err)
	row := querier.cards[future.ID]
	row.NextReview = pgtype.Timestamptz{Time: reviewTime.AddDate(0, 0, 10), Valid: true}
	querier.cards[future.ID] = row

	cards, err := store.Due(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, due.ID, cards[0].ID)
}

func TestStoreFronts(t *testing.T) {
	querier := newMockQuerier()
	store := newTestStore(querier, reviewTime)

	_, err := store.Add(context.Background(), "a", "1")
	require.NoError(t, err)
	_, err = store.Add(context.Background(), "b", "2")
	require.NoError(t, err)

	fronts, err := store.Fronts(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, fronts)
}
