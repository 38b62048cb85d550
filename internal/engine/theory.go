package engine

import (
	"context"
	"fmt"

	"github.com/studyforge/studyai/internal/rag"
)

const professorSystem = "You are a computer science professor answering exam-level theory " +
	"questions from course material. Be precise and rigorous."

// Answer is a cited theory answer.
type Answer struct {
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources"`
	Chunks  []string     `json:"chunks,omitempty"`
}

// Theory answers a question from the indexed material, with headings, a
// mandatory code example, and [n] citations mapping to the returned
// sources. The question is appended to the query history.
func (e *Engine) Theory(ctx context.Context, query string, opts ...rag.RetrieveOption) (*Answer, error) {
	rc, err := e.retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	prompt := fmt.Sprintf(`Context:
%s

Question: %s

Task: Write a theory answer with markdown headings.
MANDATORY: Include one code example in a fenced code block.
CITATIONS: Cite supporting passages with [1], [2] notation matching the SOURCE labels above.`,
		rc.Text, query)

	text, err := e.llm.GenerateText(ctx, professorSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	e.record(ctx, query)

	return &Answer{
		Answer:  text,
		Sources: rc.Sources,
		Chunks:  rc.Chunks,
	}, nil
}
