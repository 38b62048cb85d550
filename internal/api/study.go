package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/studyforge/studyai/internal/config"
	"github.com/studyforge/studyai/internal/engine"
	"github.com/studyforge/studyai/internal/flashcard"
	"github.com/studyforge/studyai/internal/knowledge"
	"github.com/studyforge/studyai/internal/llm"
	"github.com/studyforge/studyai/internal/rag"
)

// maxRequestBody limits study request bodies; questions and topics are
// short free text.
const maxRequestBody = 64 << 10

// maxQueryLength is the maximum allowed question or topic length in bytes.
const maxQueryLength = 2000

// StudyEngine is the part of engine.Engine the HTTP handlers need.
type StudyEngine interface {
	Theory(ctx context.Context, query string, opts ...rag.RetrieveOption) (*engine.Answer, error)
	MindMap(ctx context.Context, query string, opts ...rag.RetrieveOption) (*engine.MindMap, []rag.Source, error)
	Quiz(ctx context.Context, query string, numQuestions int, opts ...rag.RetrieveOption) ([]engine.QuizQuestion, []rag.Source, error)
	GenerateFlashcards(ctx context.Context, query string, opts ...rag.RetrieveOption) ([]flashcard.Card, []rag.Source, error)
	GapAnalysis(ctx context.Context) (string, error)
}

// studyHandler holds dependencies for the study API endpoints.
type studyHandler struct {
	engine StudyEngine
	logger *slog.Logger
}

// queryRequest is the request body for topic-driven endpoints. The
// retrieval fields are optional per-request overrides of the configured
// pipeline; omitted fields keep the service defaults.
type queryRequest struct {
	Question     string `json:"question"`
	Topic        string `json:"topic"`
	Unit         string `json:"unit"`
	NumQuestions int    `json:"num_questions"`
	TopK         int    `json:"top_k"`
	UseHyDE      *bool  `json:"use_hyde"`
	UseRerank    *bool  `json:"use_rerank"`
}

// query returns either the question or the topic field, whichever is set.
// The two names exist so "question" reads naturally for theory Q&A and
// "topic" for generation endpoints.
func (req *queryRequest) query() string {
	if q := strings.TrimSpace(req.Question); q != "" {
		return q
	}
	return strings.TrimSpace(req.Topic)
}

// retrieveOptions translates the request's override fields into retrieval
// options. top_k is capped at the configured maximum.
func (req *queryRequest) retrieveOptions() []rag.RetrieveOption {
	var opts []rag.RetrieveOption
	if req.TopK > 0 {
		k := req.TopK
		if k > config.MaxTopK {
			k = config.MaxTopK
		}
		opts = append(opts, rag.WithTopK(k))
	}
	if req.UseHyDE != nil {
		opts = append(opts, rag.WithHyDE(*req.UseHyDE))
	}
	if req.UseRerank != nil {
		opts = append(opts, rag.WithRerank(*req.UseRerank))
	}
	if unit := strings.TrimSpace(req.Unit); unit != "" {
		opts = append(opts, rag.WithSearchOptions(knowledge.WithFilter(knowledge.MetaUnit, unit)))
	}
	return opts
}

// theory handles POST /api/v1/query — answers a theory question with
// cited sources.
func (h *studyHandler) theory(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	answer, err := h.engine.Theory(r.Context(), req.query(), req.retrieveOptions()...)
	if err != nil {
		h.writeEngineError(w, "answering question", err)
		return
	}

	WriteJSON(w, http.StatusOK, answer, h.logger)
}

// mindMapResponse is the JSON representation of a generated mind map.
type mindMapResponse struct {
	Topic    string              `json:"topic"`
	Branches map[string][]string `json:"branches"`
	DOT      string              `json:"dot"`
	Sources  []rag.Source        `json:"sources"`
}

// mindMap handles POST /api/v1/mindmap — returns the branch structure
// plus a rendered Graphviz DOT document.
func (h *studyHandler) mindMap(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	m, sources, err := h.engine.MindMap(r.Context(), req.query(), req.retrieveOptions()...)
	if err != nil {
		h.writeEngineError(w, "generating mind map", err)
		return
	}

	WriteJSON(w, http.StatusOK, mindMapResponse{
		Topic:    m.Topic,
		Branches: m.Branches,
		DOT:      m.DOT(),
		Sources:  sources,
	}, h.logger)
}

// quiz handles POST /api/v1/quiz — generates a multiple-choice quiz.
func (h *studyHandler) quiz(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	questions, sources, err := h.engine.Quiz(r.Context(), req.query(), req.NumQuestions, req.retrieveOptions()...)
	if err != nil {
		h.writeEngineError(w, "generating quiz", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"questions": questions,
		"sources":   sources,
	}, h.logger)
}

// gapAnalysis handles POST /api/v1/gap-analysis — compares indexed
// material with the student's query history.
func (h *studyHandler) gapAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.engine.GapAnalysis(r.Context())
	if err != nil {
		if errors.Is(err, engine.ErrNoSources) {
			WriteError(w, http.StatusBadRequest, "empty_index", "no course material indexed yet", h.logger)
			return
		}
		h.writeEngineError(w, "running gap analysis", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"analysis": analysis}, h.logger)
}

// decodeQuery decodes and validates a topic-driven request body.
// Returns false if a response has already been written.
func (h *studyHandler) decodeQuery(w http.ResponseWriter, r *http.Request) (*queryRequest, bool) {
	var req queryRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return nil, false
	}

	q := req.query()
	if q == "" {
		WriteError(w, http.StatusBadRequest, "missing_query", "question or topic is required", h.logger)
		return nil, false
	}
	if len(q) > maxQueryLength {
		WriteError(w, http.StatusBadRequest, "query_too_long", "query must be 2000 characters or fewer", h.logger)
		return nil, false
	}
	return &req, true
}

// writeEngineError maps engine failures to HTTP responses. Upstream model
// failures surface as 502 so clients can distinguish them from bad input;
// an open circuit breaker gets 503 with a retry hint.
func (h *studyHandler) writeEngineError(w http.ResponseWriter, action string, err error) {
	h.logger.Error(action, "error", err)

	if errors.Is(err, llm.ErrCircuitOpen) {
		w.Header().Set("Retry-After", "30")
		WriteError(w, http.StatusServiceUnavailable, "llm_unavailable", "model temporarily unavailable", h.logger)
		return
	}
	WriteError(w, http.StatusBadGateway, "generation_failed", "failed to generate a response", h.logger)
}

// decodeJSON decodes a JSON request body with a size cap.
// Returns false if a response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", logger)
			return false
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", logger)
		return false
	}
	return true
}
