package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/studyforge/studyai/internal/knowledge"
	"github.com/studyforge/studyai/internal/log"
)

// Reranker reorders retrieval candidates by relevance to the query and
// cuts them down to topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []knowledge.Result, topK int) ([]knowledge.Result, error)
}

// LLMReranker scores candidates with the model. Vector similarity ranks by
// embedding distance only; a model reading query and passage together
// catches relevance the embedding misses.
type LLMReranker struct {
	llm    Generator
	logger log.Logger
}

// NewLLMReranker creates a model-backed reranker.
func NewLLMReranker(llm Generator, logger log.Logger) *LLMReranker {
	return &LLMReranker{llm: llm, logger: logger}
}

const rerankSystem = "You rank study material passages by how well they answer a question. Respond only with JSON."

// Rerank asks the model for the candidate indices in relevance order and
// reorders accordingly. Indices the model omits or invents are dropped;
// if too few valid indices come back, remaining candidates keep their
// vector order.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []knowledge.Result, topK int) ([]knowledge.Result, error) {
	if len(candidates) <= 1 {
		return candidates, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nPassages:\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, c.Chunk.Content)
	}
	fmt.Fprintf(&sb,
		"Return a JSON array of the passage numbers ordered from most to least "+
			"relevant to the question, e.g. [3, 1, 2]. Include every passage number exactly once.")

	var order []int
	if err := r.llm.GenerateJSON(ctx, rerankSystem, sb.String(), &order); err != nil {
		return nil, fmt.Errorf("reranking %d candidates: %w", len(candidates), err)
	}

	reranked := make([]knowledge.Result, 0, len(candidates))
	seen := make(map[int]bool, len(candidates))
	for _, n := range order {
		idx := n - 1
		if idx < 0 || idx >= len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true
		reranked = append(reranked, candidates[idx])
	}

	// Any candidates the model skipped keep their vector order at the tail.
	for i, c := range candidates {
		if !seen[i] {
			reranked = append(reranked, c)
		}
	}

	if topK > 0 && len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}
