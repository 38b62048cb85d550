package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyai/internal/knowledge"
	"github.com/studyforge/studyai/internal/log"
)

// mockStore implements Store with canned results.
type mockStore struct {
	results      []knowledge.Result
	err          error
	lastQuery    string
	lastOptCount int
	calls        int
}

func (m *mockStore) Search(_ context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
	m.calls++
	m.lastQuery = query
	m.lastOptCount = len(opts)
	return m.results, m.err
}

// mockGenerator implements Generator.
type mockGenerator struct {
	text    string
	textErr error
	jsonFn  func(out any) error
}

func (m *mockGenerator) GenerateText(_ context.Context, _, _ string) (string, error) {
	return m.text, m.textErr
}

func (m *mockGenerator) GenerateJSON(_ context.Context, _, _ string, out any) error {
	if m.jsonFn == nil {
		return errors.New("no json configured")
	}
	return m.jsonFn(out)
}

func result(id, content, file, unit, topic string, sim float32) knowledge.Result {
	return knowledge.Result{
		Chunk: knowledge.Chunk{
			ID:      id,
			Content: content,
			Metadata: map[string]string{
				knowledge.MetaSourceFile: file,
				knowledge.MetaUnit:       unit,
				knowledge.MetaTopic:      topic,
			},
		},
		Similarity: sim,
	}
}

func TestRetrieveAssemblesContext(t *testing.T) {
	store := &mockStore{results: []knowledge.Result{
		result("a_0", "Classes bundle state and behavior.", "oop.pptx", "Unit 1", "Classes", 0.91),
		result("b_0", "Objects are instances of classes.", "oop.pptx", "Unit 1", "Objects", 0.85),
	}}
	r := New(store, nil, nil, Options{TopK: 5}, log.NewNop())

	rc, err := r.Retrieve(context.Background(), "what is a class")
	require.NoError(t, err)

	assert.Equal(t, "what is a class", store.lastQuery)
	assert.Contains(t, rc.Text, "SOURCE [1] (oop.pptx | Unit 1 | Classes):")
	assert.Contains(t, rc.Text, "SOURCE [2]")
	require.Len(t, rc.Sources, 2)
	assert.Equal(t, "SOURCE [1]", rc.Sources[0].Label)
	assert.InDelta(t, 0.91, rc.Sources[0].Similarity, 0.001)
	assert.Equal(t, []string{
		"Classes bundle state and behavior.",
		"Objects are instances of classes.",
	}, rc.Chunks)
}

func TestRetrieveEmpty(t *testing.T) {
	r := New(&mockStore{}, nil, nil, Options{TopK: 5}, log.NewNop())

	rc, err := r.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, rc.Text)
	assert.Empty(t, rc.Sources)
}

func TestRetrieveStoreError(t *testing.T) {
	r := New(&mockStore{err: errors.New("connection refused")}, nil, nil, Options{}, log.NewNop())

	_, err := r.Retrieve(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "searching knowledge store")
}

func TestRetrieveHyDE(t *testing.T) {
	store := &mockStore{results: []knowledge.Result{result("a_0", "text", "f", "u", "t", 0.5)}}
	gen := &mockGenerator{text: "A class is a template that defines fields and methods."}
	r := New(store, gen, nil, Options{TopK: 3, UseHyDE: true}, log.NewNop())

	_, err := r.Retrieve(context.Background(), "what is a class")
	require.NoError(t, err)
	// The hypothetical answer, not the raw question, gets embedded.
	assert.Equal(t, gen.text, store.lastQuery)
}

func TestRetrieveHyDEFallsBackOnError(t *testing.T) {
	store := &mockStore{}
	gen := &mockGenerator{textErr: errors.New("quota exceeded")}
	r := New(store, gen, nil, Options{TopK: 3, UseHyDE: true}, log.NewNop())

	_, err := r.Retrieve(context.Background(), "what is a class")
	require.NoError(t, err)
	assert.Equal(t, "what is a class", store.lastQuery)
}

func TestRetrieveRerankReorders(t *testing.T) {
	store := &mockStore{results: []knowledge.Result{
		result("a_0", "first by vector", "f", "u", "t", 0.9),
		result("b_0", "second by vector", "f", "u", "t", 0.8),
		result("c_0", "third by vector", "f", "u", "t", 0.7),
	}}
	gen := &mockGenerator{jsonFn: func(out any) error {
		order := out.(*[]int)
		*order = []int{3, 1, 2}
		return nil
	}}
	r := New(store, gen, NewLLMReranker(gen, log.NewNop()),
		Options{TopK: 2, UseRerank: true}, log.NewNop())

	rc, err := r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, rc.Chunks, 2)
	assert.Equal(t, "third by vector", rc.Chunks[0])
	assert.Equal(t, "first by vector", rc.Chunks[1])
}

func TestRetrieveRerankErrorKeepsVectorOrder(t *testing.T) {
	store := &mockStore{results: []knowledge.Result{
		result("a_0", "first", "f", "u", "t", 0.9),
		result("b_0", "second", "f", "u", "t", 0.8),
		result("c_0", "third", "f", "u", "t", 0.7),
	}}
	gen := &mockGenerator{jsonFn: func(any) error { return errors.New("model unavailable") }}
	r := New(store, gen, NewLLMReranker(gen, log.NewNop()),
		Options{TopK: 2, UseRerank: true}, log.NewNop())

	rc, err := r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, rc.Chunks, 2)
	assert.Equal(t, "first", rc.Chunks[0])
	assert.Equal(t, "second", rc.Chunks[1])
}

func TestRetrieveTopKOverride(t *testing.T) {
	store := &mockStore{results: []knowledge.Result{
		result("a_0", "one", "f", "u", "t", 0.9),
		result("b_0", "two", "f", "u", "t", 0.8),
		result("c_0", "three", "f", "u", "t", 0.7),
	}}
	r := New(store, nil, nil, Options{TopK: 5}, log.NewNop())

	rc, err := r.Retrieve(context.Background(), "query", WithTopK(2))
	require.NoError(t, err)
	assert.Len(t, rc.Chunks, 2)

	// Non-positive overrides are ignored.
	rc, err = r.Retrieve(context.Background(), "query", WithTopK(0))
	require.NoError(t, err)
	assert.Len(t, rc.Chunks, 3)
}

func TestRetrieveHyDEOverrideDisables(t *testing.T) {
	store := &mockStore{}
	gen := &mockGenerator{text: "hypothetical answer"}
	r := New(store, gen, nil, Options{TopK: 3, UseHyDE: true}, log.NewNop())

	_, err := r.Retrieve(context.Background(), "what is a class", WithHyDE(false))
	require.NoError(t, err)
	assert.Equal(t, "what is a class", store.lastQuery)
}

func TestRetrieveRerankOverrideDisables(t *testing.T) {
	store := &mockStore{results: []knowledge.Result{
		result("a_0", "first", "f", "u", "t", 0.9),
		result("b_0", "second", "f", "u", "t", 0.8),
	}}
	gen := &mockGenerator{jsonFn: func(out any) error {
		order := out.(*[]int)
		*order = []int{2, 1}
		return nil
	}}
	r := New(store, gen, NewLLMReranker(gen, log.NewNop()),
		Options{TopK: 2, UseRerank: true}, log.NewNop())

	rc, err := r.Retrieve(context.Background(), "query", WithRerank(false))
	require.NoError(t, err)
	require.Len(t, rc.Chunks, 2)
	assert.Equal(t, "first", rc.Chunks[0])
}

func TestRetrieveSearchOptionsPassThrough(t *testing.T) {
	store := &mockStore{}
	r := New(store, nil, nil, Options{TopK: 5}, log.NewNop())

	_, err := r.Retrieve(context.Background(), "query",
		WithSearchOptions(knowledge.WithFilter(knowledge.MetaUnit, "Unit 2")))
	require.NoError(t, err)
	// The top-k option plus the forwarded filter.
	assert.Equal(t, 2, store.lastOptCount)
}

func TestRetrieveDefaults(t *testing.T) {
	r := New(&mockStore{}, nil, nil, Options{}, log.NewNop())
	assert.Equal(t, 5, r.opts.TopK)
	assert.Equal(t, 3, r.opts.FetchMultiplier)
}

func TestAssembleUnknownMetadata(t *testing.T) {
	rc := assemble([]knowledge.Result{
		{Chunk: knowledge.Chunk{ID: "x_0", Content: "bare chunk", Metadata: map[string]string{}}},
	})
	assert.Contains(t, rc.Text, "SOURCE [1] (Unknown | Unknown | Unknown):")
}
