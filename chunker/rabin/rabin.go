// Package rabin implements content-defined chunking driven by a Rabin rolling
// fingerprint over a small sliding window. A boundary is declared wherever the
// masked window checksum hits zero, so identical byte runs produce identical
// chunks regardless of their position in the stream.
package rabin

import (
	"errors"

	"github.com/stream-chop/chopper/chunker"
)

// Fingerprint constants as used by pcompress.
const (
	rollPrime = 153191
	fpMask    = 0x00ffffffffff
	fpPoly    = 0xbfe6b8a5bf378d83
)

// Acceptable sliding window sizes, bytes.
const (
	MinWindowSize = 8
	MaxWindowSize = 64
)

var (
	// ErrWindowSizeOutOfRange is returned when the window size falls outside
	// [MinWindowSize:MaxWindowSize].
	ErrWindowSizeOutOfRange = errors.New("window size out of valid range")

	// ErrWindowSizeNotPowerOfTwo is returned when the window size is within
	// range but not a power of two.
	ErrWindowSizeNotPowerOfTwo = errors.New("window size must be a power of two")
)

// tables hold the two precomputed 256-entry maps: the polynomial contribution
// of a byte leaving the window, and the irreducible-polynomial fold combined
// into the checksum at boundary-test time. They are read-only once built and
// safe to share between chunker instances.
type tables struct {
	out [256]uint64
	ir  [256]uint64
}

func calcTables(windowSize int) *tables {
	t := &tables{}

	polyPow := uint64(1)
	for i := 0; i < windowSize; i++ {
		polyPow = (polyPow * rollPrime) & fpMask
	}

	for b := 0; b < 256; b++ {
		t.out[b] = (uint64(b) * polyPow) & fpMask

		acc := uint64(1)
		for i := 0; i < windowSize; i++ {
			if acc&fpPoly != 0 {
				acc = (acc + acc*rollPrime) & fpMask
			} else {
				acc = (acc * rollPrime) & fpMask
			}
		}
		t.ir[b] = acc
	}

	return t
}

// Chunker scans its source byte-by-byte, maintaining the rolling fingerprint
// of the last windowSize bytes in a circular buffer. The window, its write
// index and the fingerprint live on the instance and are deliberately NOT
// reset between chunks: the first fingerprint values of a fresh chunk depend
// on the tail of the previous one. Boundaries are only ever tested at or
// beyond the minimum chunk size, by which point the fingerprint has converged
// to a pure function of the trailing window, so determinism across instances
// is unaffected.
type Chunker struct {
	tab     *tables
	window  [MaxWindowSize]byte
	winMask int
	wpos    int
	hash    uint64
	cutMask uint64

	source []byte
	pos    int
	parms  chunker.SizeParms
}

func validateWindowSize(windowSize int) error {
	if windowSize < MinWindowSize || windowSize > MaxWindowSize {
		return ErrWindowSizeOutOfRange
	}
	if windowSize&(windowSize-1) != 0 {
		return ErrWindowSizeNotPowerOfTwo
	}
	return nil
}

// NewChunker constructs a Chunker over source. Both the window size and the
// size parameters are validated up front: any violation is a configuration
// error and no chunker is returned.
func NewChunker(source []byte, windowSize int, parms chunker.SizeParms) (*Chunker, error) {
	if err := validateWindowSize(windowSize); err != nil {
		return nil, err
	}
	if err := parms.Validate(); err != nil {
		return nil, err
	}

	return &Chunker{
		tab:     calcTables(windowSize),
		winMask: windowSize - 1,
		cutMask: uint64(parms.AvgChunkSize - parms.MinChunkSize - 1),
		source:  source,
		parms:   parms,
	}, nil
}

// NewFactory validates the configuration once, precomputes the lookup tables
// and returns a chunker.Factory sharing them across all produced instances.
func NewFactory(windowSize int, parms chunker.SizeParms) (chunker.Factory, error) {
	if err := validateWindowSize(windowSize); err != nil {
		return nil, err
	}
	if err := parms.Validate(); err != nil {
		return nil, err
	}

	tab := calcTables(windowSize)
	return func(source []byte) (chunker.Chunker, error) {
		return &Chunker{
			tab:     tab,
			winMask: windowSize - 1,
			cutMask: uint64(parms.AvgChunkSize - parms.MinChunkSize - 1),
			source:  source,
			parms:   parms,
		}, nil
	}, nil
}

// Next implements chunker.Chunker.
func (c *Chunker) Next() (chunker.Chunk, bool) {
	if c.pos >= len(c.source) {
		return chunker.Chunk{}, false
	}

	remaining := len(c.source) - c.pos

	// Not enough left to ever reach the minimum: the whole remainder becomes
	// the final chunk, the one place the minimum-size bound may be violated.
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
		b := c.source[cur]
		out := c.window[c.wpos]

		c.hash = (((c.hash*rollPrime)&fpMask)+uint64(b)-c.tab.out[out]) & fpMask

		c.window[c.wpos] = b
		c.wpos = (c.wpos + 1) & c.winMask

		if cur-c.pos+1 >= c.parms.MinChunkSize {
			if (c.hash^c.tab.ir[out])&c.cutMask == 0 {
				ck := chunker.Chunk{Offset: c.pos, Length: cur - c.pos + 1}
				c.pos = cur + 1
				return ck, true
			}
		}
	}

	// No boundary before min(max size, bytes remaining): forced cut.
	ck := chunker.Chunk{Offset: c.pos, Length: scanLimit - c.pos}
	c.pos = scanLimit
	return ck, true
}
