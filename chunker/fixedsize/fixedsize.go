// Package fixedsize implements the trivial stride-based splitter. Boundaries
// depend only on the source length and the configured chunk size, never on
// content, which makes it useless against byte-shifted edits: it exists as
// the baseline the content-defined chunkers are measured against.
package fixedsize

import (
	"errors"

	"github.com/stream-chop/chopper/chunker"
)

// ErrZeroChunkSize is returned for a non-positive chunk size, which would not
// allow any meaningful chunking.
var ErrZeroChunkSize = errors.New("chunk size must be greater than zero")

// Chunker strides through its source in fixed-size steps. The final chunk is
// shortened to whatever remains.
type Chunker struct {
	source []byte
	size   int
	pos    int
}

// NewChunker constructs a Chunker over source.
func NewChunker(source []byte, chunkSize int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, ErrZeroChunkSize
	}
	return &Chunker{
		source: source,
		size:   chunkSize,
	}, nil
}

// NewFactory returns a chunker.Factory producing Chunkers with the given
// chunk size. The size is validated once, up front.
func NewFactory(chunkSize int) (chunker.Factory, error) {
	if chunkSize <= 0 {
		return nil, ErrZeroChunkSize
	}
	return func(source []byte) (chunker.Chunker, error) {
		return NewChunker(source, chunkSize)
	}, nil
}

// Next implements chunker.Chunker.
func (c *Chunker) Next() (chunker.Chunk, bool) {
	if c.pos >= len(c.source) {
		return chunker.Chunk{}, false
	}

	length := c.size
	if remaining := len(c.source) - c.pos; remaining < length {
		length = remaining
	}

	ck := chunker.Chunk{Offset: c.pos, Length: length}
	c.pos += c.size
	return ck, true
}
