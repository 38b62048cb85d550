package postgres

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// InsertQuery appends a query string to the history log.
func (q *Queries) InsertQuery(ctx context.Context, query string) error {
	if _, err := q.pool.Exec(ctx,
		`INSERT INTO query_history (query) VALUES ($1)`, query); err != nil {
		return fmt.Errorf("inserting query history: %w", err)
	}
	return nil
}

// ListRecentQueries returns the most recent queries, newest first.
func (q *Queries) ListRecentQueries(ctx context.Context, limit int32) ([]string, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT query FROM query_history ORDER BY asked_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing query history: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning query: %w", err)
		}
		queries = append(queries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading query rows: %w", err)
	}
	return queries, nil
}
