package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyai/internal/engine"
	"github.com/studyforge/studyai/internal/flashcard"
	"github.com/studyforge/studyai/internal/knowledge"
	"github.com/studyforge/studyai/internal/llm"
	"github.com/studyforge/studyai/internal/log"
	"github.com/studyforge/studyai/internal/postgres"
	"github.com/studyforge/studyai/internal/rag"
)

type stubEngine struct {
	answer    *engine.Answer
	answerErr error
	mindMap   *engine.MindMap
	questions []engine.QuizQuestion
	quizErr   error
	generated []flashcard.Card
	genErr    error
	analysis  string
	gapErr    error

	lastQuery string
	lastCount int
	lastOpts  []rag.RetrieveOption
}

func (s *stubEngine) Theory(_ context.Context, query string, opts ...rag.RetrieveOption) (*engine.Answer, error) {
	s.lastQuery = query
	s.lastOpts = opts
	return s.answer, s.answerErr
}

func (s *stubEngine) MindMap(_ context.Context, query string, opts ...rag.RetrieveOption) (*engine.MindMap, []rag.Source, error) {
	s.lastQuery = query
	s.lastOpts = opts
	if s.mindMap == nil {
		return &engine.MindMap{Topic: query}, nil, nil
	}
	return s.mindMap, nil, nil
}

func (s *stubEngine) Quiz(_ context.Context, query string, n int, opts ...rag.RetrieveOption) ([]engine.QuizQuestion, []rag.Source, error) {
	s.lastQuery = query
	s.lastCount = n
	s.lastOpts = opts
	return s.questions, nil, s.quizErr
}

func (s *stubEngine) GenerateFlashcards(_ context.Context, query string, opts ...rag.RetrieveOption) ([]flashcard.Card, []rag.Source, error) {
	s.lastQuery = query
	s.lastOpts = opts
	return s.generated, nil, s.genErr
}

func (s *stubEngine) GapAnalysis(context.Context) (string, error) {
	return s.analysis, s.gapErr
}

type stubCards struct {
	cards     []flashcard.Card
	due       []flashcard.Card
	reviewErr error
	lastGrade flashcard.Grade
}

func (s *stubCards) List(context.Context) ([]flashcard.Card, error) { return s.cards, nil }
func (s *stubCards) Due(context.Context) ([]flashcard.Card, error)  { return s.due, nil }

func (s *stubCards) Review(_ context.Context, id uuid.UUID, grade flashcard.Grade) (flashcard.Card, error) {
	if s.reviewErr != nil {
		return flashcard.Card{}, s.reviewErr
	}
	s.lastGrade = grade
	return flashcard.Card{ID: id, IntervalDays: 6}, nil
}

type stubDocs struct {
	infos   []knowledge.SourceInfo
	deleted int64
}

func (s *stubDocs) Sources(context.Context) ([]knowledge.SourceInfo, error) { return s.infos, nil }
func (s *stubDocs) Count(context.Context) (int64, error)                    { return 42, nil }

func (s *stubDocs) DeleteSource(_ context.Context, _ string) (int64, error) {
	return s.deleted, nil
}

type testDeps struct {
	engine *stubEngine
	cards  *stubCards
	docs   *stubDocs
}

func newTestServer(t *testing.T, deps testDeps) http.Handler {
	t.Helper()
	if deps.engine == nil {
		deps.engine = &stubEngine{}
	}
	if deps.cards == nil {
		deps.cards = &stubCards{}
	}
	if deps.docs == nil {
		deps.docs = &stubDocs{}
	}
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Engine:    deps.engine,
		Cards:     deps.cards,
		Documents: deps.docs,
		RateBurst: 1000,
	})
	require.NoError(t, err)
	return srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestNewServerRequiresDeps(t *testing.T) {
	_, err := NewServer(ServerConfig{Cards: &stubCards{}, Documents: &stubDocs{}})
	require.Error(t, err)

	_, err = NewServer(ServerConfig{Engine: &stubEngine{}, Documents: &stubDocs{}})
	require.Error(t, err)

	_, err = NewServer(ServerConfig{Engine: &stubEngine{}, Cards: &stubCards{}})
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, testDeps{})
	rec := doJSON(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyWithoutPool(t *testing.T) {
	h := newTestServer(t, testDeps{})
	rec := doJSON(t, h, http.MethodGet, "/ready", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestTheoryEndpoint(t *testing.T) {
	eng := &stubEngine{answer: &engine.Answer{
		Answer:  "A class is a blueprint. [1]",
		Sources: []rag.Source{{Label: "SOURCE [1]", SourceFile: "oop.pptx"}},
	}}
	h := newTestServer(t, testDeps{engine: eng})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/query",
		map[string]string{"question": "what is a class"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "what is a class", eng.lastQuery)

	var got engine.Answer
	decodeBody(t, rec, &got)
	assert.Equal(t, "A class is a blueprint. [1]", got.Answer)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "oop.pptx", got.Sources[0].SourceFile)
}

func TestTheoryRetrieveOverrides(t *testing.T) {
	eng := &stubEngine{answer: &engine.Answer{Answer: "ok"}}
	h := newTestServer(t, testDeps{engine: eng})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/query", map[string]any{
		"question": "what is a class",
		"top_k":    3,
		"use_hyde": false,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, eng.lastOpts, 2)
}

func TestRetrieveOptionsClampTopK(t *testing.T) {
	tests := []struct {
		name string
		req  queryRequest
		want int
	}{
		{"omitted fields add nothing", queryRequest{}, 0},
		{"top_k only", queryRequest{TopK: 3}, 1},
		{"oversized top_k still one option", queryRequest{TopK: 500}, 1},
		{"unit filter", queryRequest{Unit: "Unit 2"}, 1},
		{"all overrides", queryRequest{TopK: 3, UseHyDE: ptr(false), UseRerank: ptr(true), Unit: "Unit 1"}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.req.retrieveOptions(), tt.want)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestTheoryMissingQuestion(t *testing.T) {
	h := newTestServer(t, testDeps{})
	rec := doJSON(t, h, http.MethodPost, "/api/v1/query", map[string]string{"question": "  "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "missing_query", resp.Error.Code)
}

func TestTheoryInvalidBody(t *testing.T) {
	h := newTestServer(t, testDeps{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTheoryUpstreamFailure(t *testing.T) {
	eng := &stubEngine{answerErr: errors.New("model exploded")}
	h := newTestServer(t, testDeps{engine: eng})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/query", map[string]string{"question": "q"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "generation_failed", resp.Error.Code)
}

func TestTheoryCircuitOpen(t *testing.T) {
	eng := &stubEngine{answerErr: llm.ErrCircuitOpen}
	h := newTestServer(t, testDeps{engine: eng})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/query", map[string]string{"question": "q"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestMindMapEndpoint(t *testing.T) {
	eng := &stubEngine{mindMap: &engine.MindMap{
		Topic:    "OOP",
		Branches: map[string][]string{"Pillars": {"Encapsulation"}},
	}}
	h := newTestServer(t, testDeps{engine: eng})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/mindmap", map[string]string{"topic": "oop"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp mindMapResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "OOP", resp.Topic)
	assert.Contains(t, resp.DOT, "digraph G {")
	assert.Contains(t, resp.DOT, `root [label="OOP"`)
}

func TestQuizEndpoint(t *testing.T) {
	eng := &stubEngine{questions: []engine.QuizQuestion{
		{ID: 1, Question: "Q1?", Options: []string{"A) x", "B) y"}, CorrectAnswer: "A) x"},
	}}
	h := newTestServer(t, testDeps{engine: eng})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/quiz",
		map[string]any{"topic": "inheritance", "num_questions": 3})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "inheritance", eng.lastQuery)
	assert.Equal(t, 3, eng.lastCount)

	var resp struct {
		Questions []engine.QuizQuestion `json:"questions"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, "Q1?", resp.Questions[0].Question)
}

func TestGapAnalysisEndpoint(t *testing.T) {
	eng := &stubEngine{analysis: "You are missing recursion."}
	h := newTestServer(t, testDeps{engine: eng})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/gap-analysis", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"analysis":"You are missing recursion."}`, rec.Body.String())
}

func TestGapAnalysisEmptyIndex(t *testing.T) {
	eng := &stubEngine{gapErr: engine.ErrNoSources}
	h := newTestServer(t, testDeps{engine: eng})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/gap-analysis", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "empty_index", resp.Error.Code)
}

func TestGenerateFlashcardsEndpoint(t *testing.T) {
	eng := &stubEngine{generated: []flashcard.Card{
		{ID: uuid.New(), Front: "What is a class?", Back: "A blueprint."},
	}}
	h := newTestServer(t, testDeps{engine: eng})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/flashcards/generate",
		map[string]string{"topic": "oop basics"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Added []flashcard.Card `json:"added"`
		Count int              `json:"count"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Added, 1)
	assert.Equal(t, "What is a class?", resp.Added[0].Front)
}

func TestGenerateFlashcardsNoneAdded(t *testing.T) {
	h := newTestServer(t, testDeps{engine: &stubEngine{}})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/flashcards/generate",
		map[string]string{"topic": "oop"})

	require.Equal(t, http.StatusOK, rec.Code)
	// nil slice serializes as [], not null
	assert.Contains(t, rec.Body.String(), `"added":[]`)
}

func TestListFlashcards(t *testing.T) {
	cards := &stubCards{cards: []flashcard.Card{{Front: "Q?", Back: "A"}}}
	h := newTestServer(t, testDeps{cards: cards})

	rec := doJSON(t, h, http.MethodGet, "/api/v1/flashcards", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Cards []flashcard.Card `json:"cards"`
		Total int              `json:"total"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp.Total)
}

func TestDueFlashcards(t *testing.T) {
	cards := &stubCards{due: []flashcard.Card{{Front: "Q?"}, {Front: "R?"}}}
	h := newTestServer(t, testDeps{cards: cards})

	rec := doJSON(t, h, http.MethodGet, "/api/v1/flashcards/due", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total int `json:"total"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.Total)
}

func TestReviewFlashcard(t *testing.T) {
	cards := &stubCards{}
	h := newTestServer(t, testDeps{cards: cards})

	id := uuid.New()
	rec := doJSON(t, h, http.MethodPut, "/api/v1/flashcards/review",
		map[string]string{"id": id.String(), "grade": "good"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, flashcard.GradeGood, cards.lastGrade)

	var card flashcard.Card
	decodeBody(t, rec, &card)
	assert.Equal(t, id, card.ID)
	assert.Equal(t, 6, card.IntervalDays)
}

func TestReviewFlashcardBadInput(t *testing.T) {
	h := newTestServer(t, testDeps{})

	rec := doJSON(t, h, http.MethodPut, "/api/v1/flashcards/review",
		map[string]string{"id": "not-a-uuid", "grade": "good"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/v1/flashcards/review",
		map[string]string{"id": uuid.New().String(), "grade": "excellent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "invalid_grade", resp.Error.Code)
}

func TestReviewFlashcardNotFound(t *testing.T) {
	cards := &stubCards{reviewErr: postgres.ErrNotFound}
	h := newTestServer(t, testDeps{cards: cards})

	rec := doJSON(t, h, http.MethodPut, "/api/v1/flashcards/review",
		map[string]string{"id": uuid.New().String(), "grade": "again"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDocuments(t *testing.T) {
	docs := &stubDocs{infos: []knowledge.SourceInfo{
		{SourceFile: "oop.pptx", ChunkCount: 30},
		{SourceFile: "arrays.pdf", ChunkCount: 12},
	}}
	h := newTestServer(t, testDeps{docs: docs})

	rec := doJSON(t, h, http.MethodGet, "/api/v1/documents", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Documents   []knowledge.SourceInfo `json:"documents"`
		TotalChunks int64                  `json:"total_chunks"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, int64(42), resp.TotalChunks)
}

func TestDeleteDocument(t *testing.T) {
	docs := &stubDocs{deleted: 30}
	h := newTestServer(t, testDeps{docs: docs})

	rec := doJSON(t, h, http.MethodDelete, "/api/v1/documents/oop.pptx", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"source_file":"oop.pptx","chunks_deleted":30}`, rec.Body.String())
}

func TestDeleteDocumentNotFound(t *testing.T) {
	h := newTestServer(t, testDeps{docs: &stubDocs{deleted: 0}})

	rec := doJSON(t, h, http.MethodDelete, "/api/v1/documents/missing.pdf", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, testDeps{})
	rec := doJSON(t, h, http.MethodGet, "/api/v1/query", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
