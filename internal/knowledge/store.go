// Package knowledge manages course-material chunks with vector search
// over PostgreSQL + pgvector. Embeddings are generated through a Genkit
// ai.Embedder; search orders by cosine distance.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/studyforge/studyai/internal/postgres"
)

// embedConcurrency bounds parallel embedding calls during batch indexing.
const embedConcurrency = 4

// Querier defines the database operations the store needs.
// The interface is defined here, by the consumer, so tests can supply a
// fake without a database.
type Querier interface {
	UpsertChunk(ctx context.Context, arg postgres.UpsertChunkParams) error
	SearchChunks(ctx context.Context, arg postgres.SearchChunksParams) ([]postgres.SearchChunksRow, error)
	CountChunks(ctx context.Context) (int64, error)
	DeleteChunk(ctx context.Context, id string) error
	DeleteChunksBySource(ctx context.Context, sourceFile string) (int64, error)
	ListSources(ctx context.Context) ([]postgres.SourceCountRow, error)
}

// Store manages chunks with vector search capabilities.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store.
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds and upserts a single chunk.
func (s *Store) Add(ctx context.Context, chunk Chunk) error {
	embedding, err := s.embed(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embedding chunk %q: %w", chunk.ID, err)
	}

	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	err = s.queries.UpsertChunk(ctx, postgres.UpsertChunkParams{
		ID:        chunk.ID,
		Content:   chunk.Content,
		Embedding: pgvector.NewVector(embedding),
		Metadata:  metadataJSON,
		CreatedAt: pgtype.Timestamptz{Time: chunk.CreatedAt, Valid: !chunk.CreatedAt.IsZero()},
	})
	if err != nil {
		return fmt.Errorf("upserting chunk %q: %w", chunk.ID, err)
	}

	s.logger.Debug("added chunk", "id", chunk.ID, "content_length", len(chunk.Content))
	return nil
}

// AddBatch embeds and upserts chunks with bounded concurrency.
// The first error cancels the remaining work.
func (s *Store) AddBatch(ctx context.Context, chunks []Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for _, chunk := range chunks {
		g.Go(func() error {
			return s.Add(gctx, chunk)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("batch indexing: %w", err)
	}
	return nil
}

// Search performs semantic search over the indexed chunks.
// The query text is embedded and results are ordered by cosine similarity.
//
//	results, err := store.Search(ctx, "polymorphism",
//	    knowledge.WithTopK(10),
//	    knowledge.WithFilter(knowledge.MetaUnit, "Unit 2"))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var filterJSON []byte
	if len(cfg.filter) > 0 {
		filterJSON, err = json.Marshal(cfg.filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
	}

	rows, err := s.queries.SearchChunks(queryCtx, postgres.SearchChunksParams{
		QueryEmbedding: pgvector.NewVector(embedding),
		FilterMetadata: filterJSON,
		ResultLimit:    cfg.topK,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return s.rowsToResults(rows), nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

// Delete removes a single chunk by ID.
func (s *Store) Delete(ctx context.Context, chunkID string) error {
	if err := s.queries.DeleteChunk(ctx, chunkID); err != nil {
		return fmt.Errorf("deleting chunk %q: %w", chunkID, err)
	}
	s.logger.Debug("deleted chunk", "id", chunkID)
	return nil
}

// DeleteSource removes all chunks ingested from a source file and reports
// how many were removed.
func (s *Store) DeleteSource(ctx context.Context, sourceFile string) (int64, error) {
	n, err := s.queries.DeleteChunksBySource(ctx, sourceFile)
	if err != nil {
		return 0, fmt.Errorf("deleting source %q: %w", sourceFile, err)
	}
	s.logger.Info("deleted source", "source_file", sourceFile, "chunks", n)
	return n, nil
}

// Sources lists the distinct source files in the index.
func (s *Store) Sources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.queries.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	infos := make([]SourceInfo, len(rows))
	for i, r := range rows {
		infos[i] = SourceInfo{SourceFile: r.SourceFile, ChunkCount: r.ChunkCount}
	}
	return infos, nil
}

// embed generates an embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// rowsToResults converts database rows to Results.
func (s *Store) rowsToResults(rows []postgres.SearchChunksRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", row.ID, "error", err)
			metadata = make(map[string]string)
		}

		var createdAt time.Time
		if row.CreatedAt.Valid {
			createdAt = row.CreatedAt.Time
		}

		results = append(results, Result{
			Chunk: Chunk{
				ID:        row.ID,
				Content:   row.Content,
				Metadata:  metadata,
				CreatedAt: createdAt,
			},
			Similarity: row.Similarity,
		})
	}
	return results
}
