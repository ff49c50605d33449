// Package corpus handles document chunking and corpus-wide term statistics.
package corpus

import (
	"fmt"
	"strings"

	"github.com/testweave/testweave/internal/domain"
)

// MaxDocumentSize caps a single document before chunking.
const MaxDocumentSize = 5_000_000

// Chunker splits documents into overlapping windows.
type Chunker struct {
	ChunkSize int
	Overlap   int
}

// NewChunker creates a chunker. Size and overlap fall back to 1000/200.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{ChunkSize: size, Overlap: overlap}
}

// Split breaks text into overlapping chunks. Empty text yields no chunks;
// text within one window yields a single chunk. Windows are measured in
// runes so a boundary never lands inside a multibyte character.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(strings.ReplaceAll(text, "\r\n", "\n"))
	if len(runes) > MaxDocumentSize {
		runes = runes[:MaxDocumentSize]
	}

	if len(runes) <= c.ChunkSize {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	total := len(runes)

	for start < total {
		end := start + c.ChunkSize
		if end > total {
			end = total
		}
		chunks = append(chunks, string(runes[start:end]))

		if end >= total {
			break
		}
		start = end - c.Overlap
		if start <= 0 {
			start = 1
		}
	}

	return chunks
}

// SplitDocument chunks a document and attaches source metadata. Chunk IDs are
// "source__N" with N starting at 1.
func (c *Chunker) SplitDocument(text, source string) []domain.Chunk {
	parts := c.Split(text)
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, domain.Chunk{
			ChunkID: fmt.Sprintf("%s__%d", source, i+1),
			Text:    part,
			Source:  source,
		})
	}
	return chunks
}
