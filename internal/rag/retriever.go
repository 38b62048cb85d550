// Package rag turns a question into labeled course context for the LLM.
// Retrieval optionally rewrites the query with HyDE (embedding a
// hypothetical answer instead of the question) and reranks an over-fetched
// candidate set down to the final top K.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/studyforge/studyai/internal/knowledge"
	"github.com/studyforge/studyai/internal/log"
)

// Store is the part of knowledge.Store retrieval needs.
type Store interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Generator is the part of llm.Client retrieval needs.
type Generator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
	GenerateJSON(ctx context.Context, system, prompt string, out any) error
}

// Options configures the retrieval pipeline.
type Options struct {
	TopK            int  // results returned to the caller
	FetchMultiplier int  // over-fetch factor when reranking
	UseHyDE         bool // rewrite the query before embedding
	UseRerank       bool // rerank the over-fetched candidates
}

// Source describes where one context passage came from.
type Source struct {
	Label      string  `json:"label"`
	SourceFile string  `json:"source_file"`
	Unit       string  `json:"unit"`
	Topic      string  `json:"topic"`
	Similarity float32 `json:"similarity"`
}

// Context is the assembled retrieval output: prompt-ready labeled text,
// the raw passages, and the source map for citations.
type Context struct {
	Text    string
	Chunks  []string
	Sources []Source
}

// Retriever runs the retrieval pipeline over the knowledge store.
type Retriever struct {
	store    Store
	llm      Generator
	reranker Reranker
	opts     Options
	logger   log.Logger
}

// New creates a Retriever. llm may be nil when HyDE is disabled; reranker
// may be nil when reranking is disabled.
func New(store Store, llm Generator, reranker Reranker, opts Options, logger log.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.FetchMultiplier <= 0 {
		opts.FetchMultiplier = 3
	}
	return &Retriever{
		store:    store,
		llm:      llm,
		reranker: reranker,
		opts:     opts,
		logger:   logger,
	}
}

const hydeSystem = "You are a computer science lecturer writing course material."

// RetrieveOption overrides the configured pipeline for one call. Clients
// may request a different top-k or toggle HyDE/reranking per query.
type RetrieveOption func(*retrieveConfig)

type retrieveConfig struct {
	opts       Options
	searchOpts []knowledge.SearchOption
}

// WithTopK overrides how many passages this call returns.
func WithTopK(k int) RetrieveOption {
	return func(c *retrieveConfig) {
		if k > 0 {
			c.opts.TopK = k
		}
	}
}

// WithHyDE toggles HyDE query expansion for this call.
func WithHyDE(enabled bool) RetrieveOption {
	return func(c *retrieveConfig) { c.opts.UseHyDE = enabled }
}

// WithRerank toggles reranking for this call.
func WithRerank(enabled bool) RetrieveOption {
	return func(c *retrieveConfig) { c.opts.UseRerank = enabled }
}

// WithSearchOptions passes extra options (such as a unit filter) through
// to the store's search.
func WithSearchOptions(opts ...knowledge.SearchOption) RetrieveOption {
	return func(c *retrieveConfig) { c.searchOpts = append(c.searchOpts, opts...) }
}

// Retrieve searches the knowledge store for passages relevant to query and
// assembles them into labeled context.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...RetrieveOption) (*Context, error) {
	cfg := retrieveConfig{opts: r.opts}
	for _, opt := range opts {
		opt(&cfg)
	}

	searchQuery := r.searchQuery(ctx, query, cfg.opts.UseHyDE)

	rerank := cfg.opts.UseRerank && r.reranker != nil
	fetchK := cfg.opts.TopK
	if rerank {
		fetchK = cfg.opts.TopK * cfg.opts.FetchMultiplier
	}

	searchOpts := append([]knowledge.SearchOption{knowledge.WithTopK(fetchK)}, cfg.searchOpts...)
	results, err := r.store.Search(ctx, searchQuery, searchOpts...)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge store: %w", err)
	}
	if len(results) == 0 {
		return &Context{}, nil
	}

	if rerank && len(results) > 1 {
		reranked, err := r.reranker.Rerank(ctx, query, results, cfg.opts.TopK)
		if err != nil {
			// Vector order is a usable fallback; reranking only refines it.
			r.logger.Warn("rerank failed, keeping vector order", "error", err)
		} else {
			results = reranked
		}
	}
	if len(results) > cfg.opts.TopK {
		results = results[:cfg.opts.TopK]
	}

	return assemble(results), nil
}

// searchQuery returns the text to embed. With HyDE enabled, a hypothetical
// answer written by the model usually lands closer to the actual course
// material than the bare question does.
func (r *Retriever) searchQuery(ctx context.Context, query string, useHyDE bool) string {
	if !useHyDE || r.llm == nil {
		return query
	}

	prompt := fmt.Sprintf(
		"Write one short paragraph (3-4 sentences) that directly answers the following "+
			"student question, as it would appear in lecture notes. Do not say you are "+
			"unsure; write a confident, plausible answer.\n\nQuestion: %s", query)

	hypothetical, err := r.llm.GenerateText(ctx, hydeSystem, prompt)
	if err != nil {
		r.logger.Warn("hyde expansion failed, using raw query", "error", err)
		return query
	}
	r.logger.Debug("hyde expansion", "query", query, "hypothetical_len", len(hypothetical))
	return hypothetical
}

// assemble builds the labeled context block and source map. Passages are
// labeled SOURCE [n] so the answer's citations can be mapped back.
func assemble(results []knowledge.Result) *Context {
	var (
		sb      strings.Builder
		chunks  = make([]string, 0, len(results))
		sources = make([]Source, 0, len(results))
	)

	for i, res := range results {
		label := fmt.Sprintf("SOURCE [%d]", i+1)
		meta := res.Chunk.Metadata

		fmt.Fprintf(&sb, "%s (%s | %s | %s):\n%s\n\n",
			label,
			orUnknown(meta[knowledge.MetaSourceFile]),
			orUnknown(meta[knowledge.MetaUnit]),
			orUnknown(meta[knowledge.MetaTopic]),
			res.Chunk.Content,
		)

		chunks = append(chunks, res.Chunk.Content)
		sources = append(sources, Source{
			Label:      label,
			SourceFile: orUnknown(meta[knowledge.MetaSourceFile]),
			Unit:       orUnknown(meta[knowledge.MetaUnit]),
			Topic:      orUnknown(meta[knowledge.MetaTopic]),
			Similarity: res.Similarity,
		})
	}

	return &Context{
		Text:    strings.TrimSpace(sb.String()),
		Chunks:  chunks,
		Sources: sources,
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
