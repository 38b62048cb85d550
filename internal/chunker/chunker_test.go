package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// words builds a test string of n numbered words.
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestSplitExactWindows(t *testing.T) {
	s := New(10, 0)
	chunks := s.Split("notes", words(30), nil)

	require.Len(t, chunks, 3)
	assert.Equal(t, "notes_0", chunks[0].ID)
	assert.Equal(t, "notes_2", chunks[2].ID)
	for _, c := range chunks {
		assert.Len(t, strings.Fields(c.Text), 10)
	}
}

func TestSplitTrailingPartialChunk(t *testing.T) {
	s := New(10, 0)
	chunks := s.Split("notes", words(25), nil)

	require.Len(t, chunks, 3)
	assert.Len(t, strings.Fields(chunks[2].Text), 5)
}

func TestSplitOverlap(t *testing.T) {
	s := New(10, 4)
	chunks := s.Split("notes", words(22), nil)

	// Step is 6 words; windows start at 0, 6, 12, 18.
	require.Len(t, chunks, 4)
	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	assert.Equal(t, first[6:], second[:4], "overlapping words must repeat")
}

func TestSplitEmpty(t *testing.T) {
	s := New(10, 0)
	assert.Nil(t, s.Split("notes", "   \n\t ", nil))
}

func TestSplitCopiesMetadata(t *testing.T) {
	s := New(5, 0)
	meta := map[string]string{"unit": "Unit 1", "source_file": "a.txt"}
	chunks := s.Split("a", words(12), meta)

	require.Len(t, chunks, 3)
	chunks[0].Metadata["unit"] = "mutated"
	assert.Equal(t, "Unit 1", chunks[1].Metadata["unit"], "chunks must not share metadata maps")
	assert.Equal(t, "Unit 1", meta["unit"], "caller map must not be mutated")
}

func TestSplitIDsUnique(t *testing.T) {
	s := New(3, 1)
	chunks := s.Split("dup", words(40), nil)

	seen := make(map[string]bool)
	for _, c := range chunks {
		assert.False(t, seen[c.ID], "duplicate chunk ID %s", c.ID)
		seen[c.ID] = true
	}
}

func TestNewClampsArguments(t *testing.T) {
	s := New(0, -5)
	assert.Equal(t, DefaultSize, s.size)
	assert.Equal(t, 0, s.overlap)

	s = New(10, 10)
	assert.Equal(t, 9, s.overlap)
}

func TestParseHeaders(t *testing.T) {
	text := "[UNIT: Unit 3]\n[SOURCE_FILE: oop.pptx]\n----\nTOPIC: Polymorphism\nDefinition:\nbody text"
	unit, topic := ParseHeaders(text)
	assert.Equal(t, "Unit 3", unit)
	assert.Equal(t, "Polymorphism", topic)
}

func TestParseHeadersMissing(t *testing.T) {
	unit, topic := ParseHeaders("plain text with no headers")
	assert.Equal(t, "Unknown", unit)
	assert.Equal(t, "Unknown", topic)
}
