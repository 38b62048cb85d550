package knowledge

import "time"

// VectorDimension is the embedding width used by the chunks table.
// text-embedding-004 outputs 768-dimension vectors; the pgvector column
// is declared vector(768) to match.
const VectorDimension = 768

// Metadata keys attached to chunks during ingestion.
const (
	// MetaUnit is the course unit the chunk belongs to.
	MetaUnit = "unit"

	// MetaTopic is the detected topic heading of the source document.
	MetaTopic = "topic"

	// MetaSourceFile is the file (or URL) the chunk was extracted from.
	MetaSourceFile = "source_file"
)

// Chunk is a contiguous span of source-document text.
// Chunks are created by the ingestion pipeline and immutable once indexed;
// re-ingesting a source replaces its chunks wholesale.
type Chunk struct {
	ID        string            // "<file stem>_<index>", unique per corpus
	Content   string            // chunk text
	Metadata  map[string]string // unit, topic, source_file
	CreatedAt time.Time
}

// Result is a single search result with its similarity score.
type Result struct {
	Chunk      Chunk
	Similarity float32 // cosine similarity (0-1)
}

// SourceInfo describes one indexed source file.
type SourceInfo struct {
	SourceFile string `json:"source_file"`
	ChunkCount int64  `json:"chunk_count"`
}

// SearchOption configures search behavior using functional options.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int32
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of results to return. Default 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = int32(k)
		}
	}
}

// WithFilter adds a metadata filter; multiple calls AND together.
// Example: WithFilter(MetaUnit, "Unit 3").
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the per-search timeout. Default 10s.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
