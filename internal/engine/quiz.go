package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/studyforge/studyai/internal/rag"
)

// QuizQuestion is one multiple-choice question.
type QuizQuestion struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// ErrEmptyQuiz is returned when the model produced no usable questions.
var ErrEmptyQuiz = errors.New("quiz generation returned no questions")

const (
	// DefaultQuizQuestions is the question count when the caller leaves
	// it unset.
	DefaultQuizQuestions = 5
	// MaxQuizQuestions caps a single quiz request.
	MaxQuizQuestions = 20
)

const quizSystem = "You are a professor writing hard multiple-choice exams. Respond only with JSON."

// Quiz generates an n-question multiple-choice quiz for a topic.
func (e *Engine) Quiz(ctx context.Context, query string, numQuestions int, opts ...rag.RetrieveOption) ([]QuizQuestion, []rag.Source, error) {
	if numQuestions <= 0 {
		numQuestions = DefaultQuizQuestions
	}
	if numQuestions > MaxQuizQuestions {
		numQuestions = MaxQuizQuestions
	}

	rc, err := e.retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieving context: %w", err)
	}

	prompt := fmt.Sprintf(`Task: Create a hard %d-question MCQ quiz for: %q

Context:
%s

CONSTRAINT: Focus questions on code behavior and output, not terminology definitions.

OUTPUT FORMAT: A raw JSON list.
[
    {
        "id": 1,
        "question": "Question text?",
        "options": ["A) Opt1", "B) Opt2", "C) Opt3", "D) Opt4"],
        "correct_answer": "B) Opt2",
        "explanation": "Why..."
    }
]`, numQuestions, query, rc.Text)

	var questions []QuizQuestion
	if err := e.llm.GenerateJSON(ctx, quizSystem, prompt, &questions); err != nil {
		return nil, nil, fmt.Errorf("generating quiz: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, ErrEmptyQuiz
	}

	// Renumber sequentially; models occasionally repeat or skip IDs.
	for i := range questions {
		questions[i].ID = i + 1
	}

	e.record(ctx, query)
	return questions, rc.Sources, nil
}
