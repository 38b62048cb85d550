// Package app wires the application together: database, model client,
// stores, retrieval, and the study engine. Both the CLI commands and the
// HTTP server are built from the same container.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyforge/studyai/db"
	"github.com/studyforge/studyai/internal/chunker"
	"github.com/studyforge/studyai/internal/config"
	"github.com/studyforge/studyai/internal/engine"
	"github.com/studyforge/studyai/internal/flashcard"
	"github.com/studyforge/studyai/internal/history"
	"github.com/studyforge/studyai/internal/ingest"
	"github.com/studyforge/studyai/internal/knowledge"
	"github.com/studyforge/studyai/internal/llm"
	"github.com/studyforge/studyai/internal/log"
	"github.com/studyforge/studyai/internal/postgres"
	"github.com/studyforge/studyai/internal/rag"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool      *pgxpool.Pool
	Queries   *postgres.Queries
	LLM       *llm.Client
	Knowledge *knowledge.Store
	Cards     *flashcard.Store
	History   *history.Log
	Retriever *rag.Retriever
	Engine    *engine.Engine
	Ingestor  *ingest.Pipeline
}

// Setup validates the configuration, runs pending database migrations,
// and constructs every component.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	keys := config.APIKeys()
	if len(keys) == 0 {
		return nil, config.ErrMissingAPIKey
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	queries := postgres.New(pool)

	client, err := llm.New(ctx, keys, llm.Options{
		Model:       cfg.ModelName,
		Temperature: float64(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	logger.Info("model client ready",
		"model", cfg.ModelName,
		"api_keys", client.Keys(),
	)

	store := knowledge.New(queries, client.Embedder(cfg.EmbedderModel), logger)
	cards := flashcard.NewStore(queries, logger)
	queryLog := history.New(queries, logger)

	retriever := rag.New(store, client, rag.NewLLMReranker(client, logger), rag.Options{
		TopK:            cfg.TopK,
		FetchMultiplier: cfg.FetchMultiplier,
		UseHyDE:         cfg.UseHyDE,
		UseRerank:       cfg.UseRerank,
	}, logger)

	eng, err := engine.New(engine.Deps{
		LLM:       client,
		Retriever: retriever,
		Cards:     cards,
		Sources:   store,
		History:   queryLog,
		Logger:    logger,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	splitter := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Queries:   queries,
		LLM:       client,
		Knowledge: store,
		Cards:     cards,
		History:   queryLog,
		Retriever: retriever,
		Engine:    eng,
		Ingestor:  ingest.New(store, splitter, "", logger),
	}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
