// Package chunker cuts page text into fixed-size, overlapping character windows.
package chunker

import (
	"fmt"
	"strings"

	"termsheet/internal/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 6000

// DefaultChunkOverlap is the default number of characters shared by neighbouring chunks.
const DefaultChunkOverlap = 500

// Split cuts text into windows of size characters starting every size-overlap
// characters. Each window is trimmed; windows that trim to "" are kept so
// chunk indices stay aligned with offsets. Lengths are measured in runes.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w (size=%d, overlap=%d)", domain.ErrInvalidChunkParams, size, overlap)
	}
	if text == "" {
		return []string{}, nil
	}

	runes := []rune(text)
	step := size - overlap
	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		out = append(out, strings.TrimSpace(string(runes[start:end])))
	}
	return out, nil
}

// Chunker turns a document's pages into provenance-tagged chunks.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithOverlap sets the overlap between windows in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a Chunker, rejecting parameters Split would reject.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.size <= 0 || c.overlap < 0 || c.overlap >= c.size {
		return nil, fmt.Errorf("%w (size=%d, overlap=%d)", domain.ErrInvalidChunkParams, c.size, c.overlap)
	}
	return c, nil
}

// ChunkPages splits every page and tags each window with its source, 1-based
// page number and 1-based index within the page.
func (c *Chunker) ChunkPages(pages []string, source, folder string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for p, text := range pages {
		windows, err := Split(text, c.size, c.overlap)
		if err != nil {
			return nil, err
		}
		for i, w := range windows {
			chunks = append(chunks, domain.Chunk{
				Text:       w,
				Source:     source,
				Page:       p + 1,
				ChunkIndex: i + 1,
				Folder:     folder,
			})
		}
	}
	return chunks, nil
}
