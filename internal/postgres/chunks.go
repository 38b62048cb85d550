package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Queries executes hand-written SQL against the connection pool.
// All statements are parameterized; metadata filters are JSON produced
// by json.Marshal, never raw user input.
type Queries struct {
	pool *pgxpool.Pool
}

// New creates a Queries instance backed by the given pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// Pool exposes the underlying pool for readiness probes.
func (q *Queries) Pool() *pgxpool.Pool {
	return q.pool
}

// UpsertChunkParams holds the arguments for UpsertChunk.
type UpsertChunkParams struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

const upsertChunk = `
INSERT INTO chunks (id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, COALESCE($5, now()))
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata
`

// UpsertChunk inserts or replaces a chunk row.
func (q *Queries) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	var createdAt any
	if arg.CreatedAt.Valid {
		createdAt = arg.CreatedAt
	}
	_, err := q.pool.Exec(ctx, upsertChunk,
		arg.ID, arg.Content, arg.Embedding, arg.Metadata, createdAt)
	if err != nil {
		return fmt.Errorf("upserting chunk: %w", err)
	}
	return nil
}

// SearchChunksParams holds the arguments for SearchChunks.
type SearchChunksParams struct {
	QueryEmbedding pgvector.Vector
	FilterMetadata []byte // nil disables the metadata filter
	ResultLimit    int32
}

// SearchChunksRow is one vector search result.
type SearchChunksRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
	Similarity float32
}

const searchChunksFiltered = `
SELECT id, content, metadata, created_at,
       (1 - (embedding <=> $1))::float4 AS similarity
FROM chunks
WHERE embedding IS NOT NULL AND metadata @> $2
ORDER BY embedding <=> $1
LIMIT $3
`

const searchChunksAll = `
SELECT id, content, metadata, created_at,
       (1 - (embedding <=> $1))::float4 AS similarity
FROM chunks
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1
LIMIT $2
`

// SearchChunks performs cosine-distance vector search, optionally filtered
// by a JSONB containment match on metadata.
func (q *Queries) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	var rows pgx.Rows
	var err error
	if len(arg.FilterMetadata) > 0 {
		rows, err = q.pool.Query(ctx, searchChunksFiltered,
			arg.QueryEmbedding, arg.FilterMetadata, arg.ResultLimit)
	} else {
		rows, err = q.pool.Query(ctx, searchChunksAll,
			arg.QueryEmbedding, arg.ResultLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []SearchChunksRow
	for rows.Next() {
		var r SearchChunksRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}
	return results, nil
}

// CountChunks returns the total number of indexed chunks.
func (q *Queries) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DeleteChunk removes a single chunk by ID.
func (q *Queries) DeleteChunk(ctx context.Context, id string) error {
	if _, err := q.pool.Exec(ctx, `DELETE FROM chunks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting chunk: %w", err)
	}
	return nil
}

// DeleteChunksBySource removes every chunk ingested from the given source
// file and reports how many rows were deleted.
func (q *Queries) DeleteChunksBySource(ctx context.Context, sourceFile string) (int64, error) {
	tag, err := q.pool.Exec(ctx,
		`DELETE FROM chunks WHERE metadata->>'source_file' = $1`, sourceFile)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks by source: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SourceCountRow is one indexed source file with its chunk count.
type SourceCountRow struct {
	SourceFile string
	ChunkCount int64
}

const listSources = `
SELECT metadata->>'source_file' AS source_file, count(*) AS chunk_count
FROM chunks
WHERE metadata ? 'source_file'
GROUP BY 1
ORDER BY 1
`

// ListSources returns the distinct source files present in the index.
func (q *Queries) ListSources(ctx context.Context) ([]SourceCountRow, error) {
	rows, err := q.pool.Query(ctx, listSources)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var results []SourceCountRow
	for rows.Next() {
		var r SourceCountRow
		if err := rows.Scan(&r.SourceFile, &r.ChunkCount); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading source rows: %w", err)
	}
	return results, nil
}
