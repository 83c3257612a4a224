package rabin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stream-chop/chopper/chunker"
	"github.com/stream-chop/chopper/internal/testutil"
)

var testParms = chunker.SizeParms{
	MinChunkSize: 64,
	AvgChunkSize: 256,
	MaxChunkSize: 1024,
}

func collect(c chunker.Chunker) []chunker.Chunk {
	var chunks []chunker.Chunk
	for {
		ck, ok := c.Next()
		if !ok {
			return chunks
		}
		chunks = append(chunks, ck)
	}
}

func requirePartition(t *testing.T, chunks []chunker.Chunk, sourceLen int) {
	t.Helper()
	pos := 0
	for i, ck := range chunks {
		require.Equalf(t, pos, ck.Offset, "chunk %d does not start where the previous one ended", i)
		require.Truef(t, ck.Length > 0, "chunk %d has non-positive length", i)
		pos += ck.Length
	}
	require.Equal(t, sourceLen, pos, "chunks do not cover the source")
}

func TestPartitionsSource(t *testing.T) {
	for _, size := range []int{1, 63, 64, 65, 1023, 3000, 64 * chunker.KiB} {
		data := testutil.GenerateDataBlock(size, 42)
		c, err := NewChunker(data, 64, testParms)
		require.NoError(t, err)

		requirePartition(t, collect(c), size)
	}
}

func TestSizeBounds(t *testing.T) {
	data := testutil.GenerateDataBlock(256*chunker.KiB, 7)
	c, err := NewChunker(data, 64, testParms)
	require.NoError(t, err)

	chunks := collect(c)
	require.True(t, len(chunks) > 1, "expected the source to split into multiple chunks")

	for i, ck := range chunks {
		require.Truef(t, ck.Length <= testParms.MaxChunkSize, "chunk %d exceeds the maximum size", i)
		if i < len(chunks)-1 {
			require.Truef(t, ck.Length >= testParms.MinChunkSize, "chunk %d is below the minimum size", i)
		}
	}
}

func TestDeterminism(t *testing.T) {
	data := testutil.PatternedData(50 * chunker.KiB)

	c1, err := NewChunker(data, 64, testParms)
	require.NoError(t, err)
	c2, err := NewChunker(data, 64, testParms)
	require.NoError(t, err)

	require.Equal(t, collect(c1), collect(c2))
}

func TestFactorySharesBehavior(t *testing.T) {
	data := testutil.GenerateDataBlock(32*chunker.KiB, 3)

	fact, err := NewFactory(64, testParms)
	require.NoError(t, err)

	direct, err := NewChunker(data, 64, testParms)
	require.NoError(t, err)
	made, err := fact(data)
	require.NoError(t, err)

	require.Equal(t, collect(direct), collect(made))
}

func TestShortRemainder(t *testing.T) {
	data := testutil.PatternedData(50)
	c, err := NewChunker(data, 64, testParms)
	require.NoError(t, err)

	chunks := collect(c)
	require.Len(t, chunks, 1)
	require.Equal(t, chunker.Chunk{Offset: 0, Length: 50}, chunks[0])
}

// A chunker restarted at a chunk boundary must reproduce the remaining
// boundary sequence: by the time a boundary may be declared the fingerprint
// depends only on the trailing window, regardless of what the window held at
// instance construction. The streaming segment adapter relies on this.
func TestBoundaryRestartEquivalence(t *testing.T) {
	data := testutil.GenerateDataBlock(128*chunker.KiB, 11)

	whole, err := NewChunker(data, 64, testParms)
	require.NoError(t, err)
	chunks := collect(whole)
	require.True(t, len(chunks) > 2)

	cut := chunks[0].Length
	resumed, err := NewChunker(data[cut:], 64, testParms)
	require.NoError(t, err)

	for i, ck := range collect(resumed) {
		require.Equal(t, chunks[i+1].Offset-cut, ck.Offset)
		require.Equal(t, chunks[i+1].Length, ck.Length)
	}
}

func TestInvalidWindowSizes(t *testing.T) {
	data := testutil.PatternedData(1000)
	parms := chunker.SizeParms{MinChunkSize: 64, AvgChunkSize: 256, MaxChunkSize: 1024}

	_, err := NewChunker(data, 50, parms)
	require.Equal(t, ErrWindowSizeNotPowerOfTwo, err)

	_, err = NewChunker(data, 2048, parms)
	require.Equal(t, ErrWindowSizeOutOfRange, err)

	_, err = NewChunker(data, 0, parms)
	require.Equal(t, ErrWindowSizeOutOfRange, err)
}

func TestInvalidSizeParms(t *testing.T) {
	data := testutil.PatternedData(1000)

	_, err := NewChunker(data, 64, chunker.SizeParms{MinChunkSize: 32, AvgChunkSize: 256, MaxChunkSize: 1024})
	require.Equal(t, chunker.ErrMinSizeOutOfRange, err)

	_, err = NewChunker(data, 64, chunker.SizeParms{MinChunkSize: 64, AvgChunkSize: 128, MaxChunkSize: 1024})
	require.Equal(t, chunker.ErrAvgSizeOutOfRange, err)

	_, err = NewFactory(64, chunker.SizeParms{MinChunkSize: 64, AvgChunkSize: 256, MaxChunkSize: 512})
	require.Equal(t, chunker.ErrMaxSizeOutOfRange, err)
}
