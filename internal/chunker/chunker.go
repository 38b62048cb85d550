// Package chunker splits cleaned course text into fixed-size word windows
// for embedding. Chunk IDs are "<stem>_<index>" and stay stable across
// re-ingestion of the same file, so the vector store can upsert in place.
package chunker

import (
	"fmt"
	"strings"
)

// Chunk is one window of source text with its ingestion metadata.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Splitter chunks text into windows of Size words, advancing by
// Size-Overlap words each step.
type Splitter struct {
	size    int
	overlap int
}

// DefaultSize is the chunk window in words.
const DefaultSize = 200

// New creates a Splitter. Non-positive size falls back to DefaultSize;
// overlap is clamped to [0, size).
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split chunks text into windows. stem names the source file without its
// extension; meta is copied onto every chunk.
func (s *Splitter) Split(stem, text string, meta map[string]string) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := s.size - s.overlap
	var chunks []Chunk
	for start, idx := 0, 0; start < len(words); start, idx = start+step, idx+1 {
		end := min(start+s.size, len(words))

		metadata := make(map[string]string, len(meta))
		for k, v := range meta {
			metadata[k] = v
		}

		chunks = append(chunks, Chunk{
			ID:       fmt.Sprintf("%s_%d", stem, idx),
			Text:     strings.Join(words[start:end], " "),
			Metadata: metadata,
		})

		if end == len(words) {
			break
		}
	}
	return chunks
}

// ParseHeaders extracts the unit and topic headers the cleaner writes into
// document text ("[UNIT: ...]" and "TOPIC: ..."). Missing headers return
// "Unknown", matching what downstream prompts expect.
func ParseHeaders(text string) (unit, topic string) {
	unit, topic = "Unknown", "Unknown"
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "[UNIT:"); ok {
			unit = strings.TrimSpace(strings.TrimSuffix(after, "]"))
		}
		if after, ok := strings.CutPrefix(line, "TOPIC:"); ok {
			topic = strings.TrimSpace(after)
			break
		}
	}
	return unit, topic
}
