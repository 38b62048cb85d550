// Package history keeps an append-only log of theory questions. The gap
// analysis engine reads it back to see what the student has been asking
// about.
package history

import (
	"context"
	"fmt"

	"github.com/studyforge/studyai/internal/log"
)

// DefaultRecent is how many queries gap analysis looks back over.
const DefaultRecent = 20

// Querier is the set of history queries the log depends on.
type Querier interface {
	InsertQuery(ctx context.Context, query string) error
	ListRecentQueries(ctx context.Context, limit int32) ([]string, error)
}

// Log records and recalls asked questions.
type Log struct {
	queries Querier
	logger  log.Logger
}

// New creates a query log.
func New(queries Querier, logger log.Logger) *Log {
	return &Log{queries: queries, logger: logger}
}

// Record appends a question. Recording is best-effort bookkeeping; the
// caller decides whether a failure matters.
func (l *Log) Record(ctx context.Context, query string) error {
	if query == "" {
		return nil
	}
	if err := l.queries.InsertQuery(ctx, query); err != nil {
		return fmt.Errorf("recording query: %w", err)
	}
	return nil
}

// Recent returns up to limit questions, newest first. A non-positive
// limit falls back to DefaultRecent.
func (l *Log) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultRecent
	}
	queries, err := l.queries.ListRecentQueries(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("reading query history: %w", err)
	}
	return queries, nil
}
