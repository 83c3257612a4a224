// Package segmenter chunks byte streams too large to hold in memory.
//
// It owns a quantized ring buffer and repeatedly presents the chunker with a
// contiguous region made of the carried-over tail plus freshly read bytes.
// Every chunk of a pass except the final one is definitive and delivered;
// the final chunk is provisional (more data may still extend it), so its
// bytes are retained at the front of the next region instead. On EOF the
// provisional tail is flushed as the last real chunk. The resulting chunk
// sequence is byte-identical to chunking the whole stream in one buffer.
package segmenter

import (
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-qringbuf"

	"github.com/stream-chop/chopper/chunker"
)

var (
	// ErrNoFactory is returned by New when no chunker factory is configured.
	ErrNoFactory = errors.New("a chunker factory must be provided")

	// ErrInvalidMaxChunkSize is returned by New when the maximum chunk size
	// is not positive: region sizing depends on it.
	ErrInvalidMaxChunkSize = errors.New("maximum chunk size must be positive")
)

// Chunk is a finalized piece of the logical stream: Offset is relative to the
// start of the stream, not to any internal buffer.
type Chunk struct {
	Offset int64
	Length int
}

// ChunkCallback receives each finalized chunk together with its bytes. The
// data slice aliases the internal ring buffer and is only valid for the
// duration of the call: consumers must copy whatever they intend to keep.
type ChunkCallback func(c Chunk, data []byte) error

type Config struct {
	// NewChunker builds a fresh chunker for every buffer pass. Chunkers are
	// single-use; the factory is what lets the segmenter restart one at the
	// carried-tail boundary of each new region.
	NewChunker chunker.Factory

	// MaxChunkSize is the largest chunk the factory's chunkers may emit.
	// Regions are sized at twice this value so every pass is guaranteed to
	// finalize at least one chunk.
	MaxChunkSize int

	// Ring buffer geometry. Zero values pick defaults proportional to
	// MaxChunkSize.
	BufferSize int
	SectorSize int
	MinRead    int

	// Optional qringbuf counters, aggregated across Process calls.
	Stats       *qringbuf.Stats
	TrackTiming bool
}

type Segmenter struct {
	cfg       Config
	minRegion int
}

// New validates cfg and fills in buffer-geometry defaults.
func New(cfg Config) (*Segmenter, error) {
	if cfg.NewChunker == nil {
		return nil, ErrNoFactory
	}
	if cfg.MaxChunkSize <= 0 {
		return nil, ErrInvalidMaxChunkSize
	}

	// MinRegion must be twice the max chunk size, otherwise a pass could end
	// with nothing but its provisional chunk and never make progress.
	minRegion := 2 * cfg.MaxChunkSize

	if cfg.BufferSize == 0 {
		cfg.BufferSize = 12 * minRegion
	}
	if cfg.SectorSize == 0 {
		cfg.SectorSize = minRegion / 32
	}
	if cfg.MinRead == 0 {
		cfg.MinRead = minRegion / 8
	}

	return &Segmenter{cfg: cfg, minRegion: minRegion}, nil
}

// Process reads r to exhaustion, delivering every finalized chunk to cb in
// stream order. Chunk offsets partition [0:total bytes read) with no gaps and
// no overlaps. A callback error aborts the run and is returned as-is; reader
// errors other than EOF are returned after any already-finalized chunks have
// been delivered.
func (sgm *Segmenter) Process(r io.Reader, cb ChunkCallback) error {
	qrb, err := qringbuf.NewFromReader(r, qringbuf.Config{
		MinRegion:   sgm.minRegion,
		MaxCopy:     sgm.minRegion,
		MinRead:     sgm.cfg.MinRead,
		BufferSize:  sgm.cfg.BufferSize,
		SectorSize:  sgm.cfg.SectorSize,
		Stats:       sgm.cfg.Stats,
		TrackTiming: sgm.cfg.TrackTiming,
	})
	if err != nil {
		return err
	}

	if err := qrb.StartFill(0); err != nil {
		return err
	}

	var streamOffset int64
	var available, processed int

	for {
		// evaluates the processed/available tallies of the *last* iteration:
		// the undelivered tail stays at the front of the next region
		streamOffset += int64(processed)
		region, readErr := qrb.NextRegion(available - processed)

		if region == nil || (readErr != nil && readErr != io.EOF) {
			if readErr == io.EOF {
				readErr = nil
			}
			return readErr
		}

		available = region.Size()
		processed = 0
		streamEndInView := readErr == io.EOF

		buf := region.Bytes()
		cnk, initErr := sgm.cfg.NewChunker(buf)
		if initErr != nil {
			return initErr
		}

		var pending chunker.Chunk
		var havePending bool

		deliver := func(c chunker.Chunk) error {
			if err := cb(
				Chunk{Offset: streamOffset + int64(c.Offset), Length: c.Length},
				buf[c.Offset:c.Offset+c.Length],
			); err != nil {
				return err
			}
			processed += c.Length
			return nil
		}

		for {
			c, ok := cnk.Next()
			if !ok {
				break
			}

			// a chunker that stops partitioning its buffer cannot be trusted
			// with the rest of the stream
			expectedOffset := processed
			if havePending {
				expectedOffset += pending.Length
			}
			if c.Length <= 0 || c.Offset != expectedOffset || c.Offset+c.Length > len(buf) {
				return fmt.Errorf(
					"chunker returned an invalid chunk [%d:%d] at stream offset %d of a %d byte region",
					c.Offset, c.Offset+c.Length, streamOffset, len(buf),
				)
			}

			if havePending {
				if err := deliver(pending); err != nil {
					return err
				}
			}
			pending, havePending = c, true
		}

		if streamEndInView {
			// nothing further is coming: the provisional tail is real
			if havePending {
				if err := deliver(pending); err != nil {
					return err
				}
			}
			if processed != available {
				return fmt.Errorf(
					"chunker covered %d bytes of a final %d byte region",
					processed, available,
				)
			}
		} else if processed == 0 {
			return fmt.Errorf(
				"chunker finalized nothing over a %d byte region (max chunk size %d)",
				available, sgm.cfg.MaxChunkSize,
			)
		}
	}
}
