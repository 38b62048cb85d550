package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studyforge/studyai/internal/flashcard"
	"github.com/studyforge/studyai/internal/rag"
)

// flashcardBatch is how many cards one generation request asks for.
const flashcardBatch = 5

const flashcardSystem = "You write concise study flashcards from course material. Respond only with JSON."

// generatedCard is the model's raw card shape.
type generatedCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// GenerateFlashcards generates cards for a topic and persists the ones
// whose front is not already stored. Returns the newly added cards.
func (e *Engine) GenerateFlashcards(ctx context.Context, query string, opts ...rag.RetrieveOption) ([]flashcard.Card, []rag.Source, error) {
	if e.cards == nil {
		return nil, nil, errors.New("flashcard store not configured")
	}

	rc, err := e.retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieving context: %w", err)
	}

	prompt := fmt.Sprintf(`Generate %d flashcards for: %s

Context:
%s

OUTPUT: JSON LIST. Format: [{"front": "Q?", "back": "A"}]`, flashcardBatch, query, rc.Text)

	var generated []generatedCard
	if err := e.llm.GenerateJSON(ctx, flashcardSystem, prompt, &generated); err != nil {
		return nil, nil, fmt.Errorf("generating flashcards: %w", err)
	}

	existing, err := e.cards.Fronts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading existing cards: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, front := range existing {
		seen[normalizeFront(front)] = true
	}

	var added []flashcard.Card
	for _, gc := range generated {
		front := strings.TrimSpace(gc.Front)
		back := strings.TrimSpace(gc.Back)
		if front == "" || back == "" {
			continue
		}
		if seen[normalizeFront(front)] {
			continue
		}
		seen[normalizeFront(front)] = true

		card, err := e.cards.Add(ctx, front, back)
		if err != nil {
			return nil, nil, fmt.Errorf("saving card: %w", err)
		}
		added = append(added, card)
	}

	e.logger.Info("flashcards generated",
		"query", query,
		"generated", len(generated),
		"added", len(added),
	)
	e.record(ctx, query)
	return added, rc.Sources, nil
}

func normalizeFront(front string) string {
	return strings.ToLower(strings.TrimSpace(front))
}
