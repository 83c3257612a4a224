// Package buzhash is an alternative content-defined chunker built on a cyclic
// polynomial (buzhash) rolling hash. It honors the same construct/Next
// contract and size parameters as the rabin package so the two can be swapped
// or benchmarked against each other, but its boundary placement is its own:
// chunk sequences are NOT compatible between the two algorithms.
package buzhash

import (
	"math/bits"

	"github.com/chmduquesne/rollinghash/buzhash64"

	"github.com/stream-chop/chopper/chunker"
)

const windowSize = 64

// Fixed hash-table seed: boundary placement must be reproducible across
// processes and runs.
const tableSeed = 1

// Chunker rolls a buzhash64 over its source and declares a boundary wherever
// the masked sum hits zero at or beyond the minimum chunk size. Like the
// rabin chunker, the rolling state spans chunk boundaries within an instance.
type Chunker struct {
	hash      *buzhash64.Buzhash64
	splitMask uint64

	source []byte
	pos    int
	parms  chunker.SizeParms
}

// NewChunker constructs a Chunker over source, with the mask sized to the
// closest power of two at or below the requested average.
func NewChunker(source []byte, parms chunker.SizeParms) (*Chunker, error) {
	if err := parms.Validate(); err != nil {
		return nil, err
	}

	h := buzhash64.NewFromUint64Array(buzhash64.GenerateHashes(tableSeed))
	h.Write(make([]byte, windowSize))

	return &Chunker{
		hash:      h,
		splitMask: 1<<uint(bits.Len(uint(parms.AvgChunkSize))-1) - 1,
		source:    source,
		parms:     parms,
	}, nil
}

// NewFactory validates the parameters once and returns a chunker.Factory.
func NewFactory(parms chunker.SizeParms) (chunker.Factory, error) {
	if err := parms.Validate(); err != nil {
		return nil, err
	}
	return func(source []byte) (chunker.Chunker, error) {
		return NewChunker(source, parms)
	}, nil
}

// Next implements chunker.Chunker.
func (c *Chunker) Next() (chunker.Chunk, bool) {
	if c.pos >= len(c.source) {
		return chunker.Chunk{}, false
	}

	remaining := len(c.source) - c.pos
	if remaining < c.parms.MinChunkSize {
		ck := chunker.Chunk{Offset: c.pos, Length: remaining}
		c.pos = len(c.source)
		return ck, true
	}

	scanLimit := c.pos + c.parms.MaxChunkSize
	if scanLimit > len(c.source) {
		scanLimit = len(c.source)
	}

	for cur := c.pos; cur < scanLimit; cur++ {
		c.hash.Roll(c.source[cur])

		if cur-c.pos+1 >= c.parms.MinChunkSize &&
			c.hash.Sum64()&c.splitMask == 0 {
			ck := chunker.Chunk{Offset: c.pos, Length: cur - c.pos + 1}
			c.pos = cur + 1
			return ck, true
		}
	}

	ck := chunker.Chunk{Offset: c.pos, Length: scanLimit - c.pos}
	c.pos = scanLimit
	return ck, true
}
