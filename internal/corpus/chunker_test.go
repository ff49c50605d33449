package corpus

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Split(t *testing.T) {
	c := NewChunker(1000, 200)

	t.Run("empty text", func(t *testing.T) {
		assert.Empty(t, c.Split(""))
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := c.Split("hello world")
		require.Len(t, chunks, 1)
		assert.Equal(t, "hello world", chunks[0])
	})

	t.Run("text exactly chunk size is one chunk", func(t *testing.T) {
		text := strings.Repeat("a", 1000)
		assert.Len(t, c.Split(text), 1)
	})

	t.Run("long text overlaps", func(t *testing.T) {
		text := strings.Repeat("a", 1800)
		chunks := c.Split(text)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 1000)
		assert.Len(t, chunks[1], 1000)
		// Second chunk starts at 800, so 200 chars are shared.
		assert.Equal(t, text[800:], chunks[1])
	})

	t.Run("crlf normalized", func(t *testing.T) {
		chunks := c.Split("line one\r\nline two")
		require.Len(t, chunks, 1)
		assert.Equal(t, "line one\nline two", chunks[0])
	})

	t.Run("multibyte text stays valid", func(t *testing.T) {
		text := strings.Repeat("café résumé naïve ’ ", 200)
		chunks := c.Split(text)
		require.Greater(t, len(chunks), 1)
		for i, chunk := range chunks {
			assert.True(t, utf8.ValidString(chunk), "chunk %d contains invalid UTF-8", i)
		}
	})

	t.Run("multibyte windows measured in runes", func(t *testing.T) {
		text := strings.Repeat("é", 1800)
		chunks := c.Split(text)
		require.Len(t, chunks, 2)
		assert.Equal(t, 1000, len([]rune(chunks[0])))
		assert.Equal(t, 1000, len([]rune(chunks[1])))
	})

	t.Run("full coverage without gaps", func(t *testing.T) {
		text := strings.Repeat("x", 5000)
		chunks := c.Split(text)
		var rebuilt strings.Builder
		for i, chunk := range chunks {
			if i == 0 {
				rebuilt.WriteString(chunk)
			} else {
				rebuilt.WriteString(chunk[200:])
			}
		}
		assert.Equal(t, text, rebuilt.String())
	})
}

func TestChunker_SplitDocument(t *testing.T) {
	c := NewChunker(1000, 200)

	chunks := c.SplitDocument(strings.Repeat("b", 1500), "spec.md")
	require.Len(t, chunks, 2)

	assert.Equal(t, "spec.md__1", chunks[0].ChunkID)
	assert.Equal(t, "spec.md__2", chunks[1].ChunkID)
	assert.Equal(t, "spec.md", chunks[0].Source)
}

func TestChunker_SplitDocument_Empty(t *testing.T) {
	c := NewChunker(1000, 200)
	assert.Empty(t, c.SplitDocument("", "spec.md"))
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -5)
	assert.Equal(t, 1000, c.ChunkSize)
	assert.Equal(t, 200, c.Overlap)

	// Overlap must stay below size.
	c = NewChunker(100, 100)
	assert.Equal(t, 20, c.Overlap)
	assert.Equal(t, 100, c.ChunkSize)
}
