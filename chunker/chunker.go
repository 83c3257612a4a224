package chunker

import "errors"

// Chunk is a contiguous byte range [Offset, Offset+Length) within the source
// buffer a Chunker was constructed over. It is a plain value: it does not own
// any bytes, and callers must copy the range out while the source is still
// valid. Two chunks are equal iff their offsets and lengths are equal.
type Chunk struct {
	Offset int
	Length int
}

// Chunker splits a single source buffer into a finite sequence of chunks.
//
// Next returns successive chunks in strictly increasing offset order, starting
// at offset 0 and covering the entire source with no gaps and no overlaps.
// Once ok comes back false the chunker is exhausted for good: instances are
// single-pass and not restartable.
type Chunker interface {
	Next() (c Chunk, ok bool)
}

// Factory constructs a fresh Chunker over the given source buffer. The buffer
// must not be mutated while the returned chunker is in use. A non-nil error
// always indicates an invalid configuration, never a data-dependent condition.
type Factory func(source []byte) (Chunker, error)

// Acceptable ranges for the chunk size parameters. Constructors reject any
// value outside these, they never clamp.
const (
	MinMinChunkSize = 64
	MaxMinChunkSize = 1048576

	MinAvgChunkSize = 256
	MaxAvgChunkSize = 4194304

	MinMaxChunkSize = 1024
	MaxMaxChunkSize = 16777216
)

var (
	// ErrMinSizeOutOfRange is returned when the minimum chunk size falls
	// outside [MinMinChunkSize:MaxMinChunkSize].
	ErrMinSizeOutOfRange = errors.New("minimum chunk size out of valid range")

	// ErrAvgSizeOutOfRange is returned when the average chunk size falls
	// outside [MinAvgChunkSize:MaxAvgChunkSize].
	ErrAvgSizeOutOfRange = errors.New("average chunk size out of valid range")

	// ErrMaxSizeOutOfRange is returned when the maximum chunk size falls
	// outside [MinMaxChunkSize:MaxMaxChunkSize].
	ErrMaxSizeOutOfRange = errors.New("maximum chunk size out of valid range")
)

// SizeParms bounds the sizes of chunks produced by the content-defined
// chunkers. Policy expects Min < Avg < Max: the bounded ranges above make any
// other combination either rejected outright or meaningless for cut-mask
// derivation.
type SizeParms struct {
	MinChunkSize int
	AvgChunkSize int
	MaxChunkSize int
}

// Validate checks every parameter against its documented range.
func (p SizeParms) Validate() error {
	if p.MinChunkSize < MinMinChunkSize || p.MinChunkSize > MaxMinChunkSize {
		return ErrMinSizeOutOfRange
	}
	if p.AvgChunkSize < MinAvgChunkSize || p.AvgChunkSize > MaxAvgChunkSize {
		return ErrAvgSizeOutOfRange
	}
	if p.MaxChunkSize < MinMaxChunkSize || p.MaxChunkSize > MaxMaxChunkSize {
		return ErrMaxSizeOutOfRange
	}
	return nil
}

const (
	KiB = 1024
	MiB = 1024 * KiB
)
