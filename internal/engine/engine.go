// Package engine implements the study features on top of retrieval and
// generation: theory answers, mind maps, quizzes, flashcard generation,
// and syllabus gap analysis.
package engine

import (
	"context"
	"errors"

	"github.com/studyforge/studyai/internal/flashcard"
	"github.com/studyforge/studyai/internal/knowledge"
	"github.com/studyforge/studyai/internal/log"
	"github.com/studyforge/studyai/internal/rag"
)

// Generator is the part of llm.Client the engines need.
type Generator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
	GenerateJSON(ctx context.Context, system, prompt string, out any) error
}

// Retriever supplies labeled context for a query. Per-call options let a
// request override the configured top-k, HyDE, and rerank settings.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts ...rag.RetrieveOption) (*rag.Context, error)
}

// CardStore is the part of flashcard.Store card generation needs.
type CardStore interface {
	Add(ctx context.Context, front, back string) (flashcard.Card, error)
	Fronts(ctx context.Context) ([]string, error)
}

// SourceLister reports which source files are indexed.
type SourceLister interface {
	Sources(ctx context.Context) ([]knowledge.SourceInfo, error)
}

// HistoryLog records asked questions and recalls recent ones.
type HistoryLog interface {
	Record(ctx context.Context, query string) error
	Recent(ctx context.Context, limit int) ([]string, error)
}

// Deps carries everything the engines depend on. LLM and Retriever are
// required; the rest are needed only by the features that use them.
type Deps struct {
	LLM       Generator
	Retriever Retriever
	Cards     CardStore
	Sources   SourceLister
	History   HistoryLog
	Logger    log.Logger
}

// Engine runs the study features.
type Engine struct {
	llm       Generator
	retriever Retriever
	cards     CardStore
	sources   SourceLister
	history   HistoryLog
	logger    log.Logger
}

// New creates an Engine from its dependencies.
func New(deps Deps) (*Engine, error) {
	if deps.LLM == nil {
		return nil, errors.New("engine: LLM is required")
	}
	if deps.Retriever == nil {
		return nil, errors.New("engine: retriever is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		llm:       deps.LLM,
		retriever: deps.Retriever,
		cards:     deps.Cards,
		sources:   deps.Sources,
		history:   deps.History,
		logger:    logger,
	}, nil
}

// record appends a query to the history log. History is bookkeeping for
// gap analysis, so failures are logged and swallowed.
func (e *Engine) record(ctx context.Context, query string) {
	if e.history == nil {
		return
	}
	if err := e.history.Record(ctx, query); err != nil {
		e.logger.Warn("recording query history", "error", err)
	}
}
