package segmenter

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stream-chop/chopper/chunker"
	"github.com/stream-chop/chopper/chunker/fixedsize"
	"github.com/stream-chop/chopper/chunker/rabin"
	"github.com/stream-chop/chopper/internal/testutil"
)

var testParms = chunker.SizeParms{
	MinChunkSize: 64,
	AvgChunkSize: 256,
	MaxChunkSize: 1024,
}

// geometry small enough to force many carried-tail passes over test corpora
func testSegmenter(t *testing.T, fact chunker.Factory) *Segmenter {
	t.Helper()
	sgm, err := New(Config{
		NewChunker:   fact,
		MaxChunkSize: testParms.MaxChunkSize,
		BufferSize:   32 * 1024,
		SectorSize:   4096,
		MinRead:      1024,
	})
	if err != nil {
		t.Fatalf("segmenter construction failed: %s", err)
	}
	return sgm
}

func wholeBufferChunks(t *testing.T, fact chunker.Factory, data []byte) []chunker.Chunk {
	t.Helper()
	cnk, err := fact(data)
	if err != nil {
		t.Fatalf("chunker construction failed: %s", err)
	}
	var chunks []chunker.Chunk
	for {
		c, ok := cnk.Next()
		if !ok {
			return chunks
		}
		chunks = append(chunks, c)
	}
}

func streamedChunks(t *testing.T, sgm *Segmenter, r io.Reader) ([]Chunk, []byte) {
	t.Helper()
	var chunks []Chunk
	var reassembled []byte
	err := sgm.Process(r, func(c Chunk, data []byte) error {
		if len(data) != c.Length {
			t.Fatalf("delivered %d bytes for a %d byte chunk", len(data), c.Length)
		}
		chunks = append(chunks, c)
		reassembled = append(reassembled, data...)
		return nil
	})
	if err != nil {
		t.Fatalf("stream processing failed: %s", err)
	}
	return chunks, reassembled
}

func requireEquivalence(t *testing.T, fact chunker.Factory, data []byte, r io.Reader) {
	t.Helper()
	expected := wholeBufferChunks(t, fact, data)

	sgm := testSegmenter(t, fact)
	got, reassembled := streamedChunks(t, sgm, r)

	if len(got) != len(expected) {
		t.Fatalf("streamed into %d chunks, whole-buffer into %d", len(got), len(expected))
	}
	for i := range expected {
		if got[i].Offset != int64(expected[i].Offset) || got[i].Length != expected[i].Length {
			t.Fatalf(
				"chunk %d diverged: streamed (%d,%d) vs whole-buffer (%d,%d)",
				i, got[i].Offset, got[i].Length, expected[i].Offset, expected[i].Length,
			)
		}
	}
	if !bytes.Equal(reassembled, data) {
		t.Fatal("reassembled stream does not match the source")
	}
}

func TestRabinEquivalence(t *testing.T) {
	fact, err := rabin.NewFactory(64, testParms)
	if err != nil {
		t.Fatal(err)
	}

	for _, size := range []int{0, 1, 50, 2048, 100_000, 256 * 1024} {
		data := testutil.GenerateDataBlock(size, int64(size))

		requireEquivalence(t, fact, data, bytes.NewReader(data))
		requireEquivalence(t, fact, data, iotest.HalfReader(bytes.NewReader(data)))
	}
}

func TestRabinEquivalenceOneByteReads(t *testing.T) {
	fact, err := rabin.NewFactory(64, testParms)
	if err != nil {
		t.Fatal(err)
	}

	data := testutil.GenerateDataBlock(50_000, 77)
	requireEquivalence(t, fact, data, iotest.OneByteReader(bytes.NewReader(data)))
}

func TestFixedSizeEquivalence(t *testing.T) {
	fact, err := fixedsize.NewFactory(700)
	if err != nil {
		t.Fatal(err)
	}

	data := testutil.PatternedData(100_000)
	requireEquivalence(t, fact, data, iotest.HalfReader(bytes.NewReader(data)))
}

func TestByteConservation(t *testing.T) {
	fact, err := rabin.NewFactory(32, testParms)
	if err != nil {
		t.Fatal(err)
	}

	data := testutil.GenerateDataBlock(200_000, 13)
	sgm := testSegmenter(t, fact)
	chunks, reassembled := streamedChunks(t, sgm, bytes.NewReader(data))

	var total int64
	for i, c := range chunks {
		if c.Offset != total {
			t.Fatalf("chunk %d starts at %d, expected %d", i, c.Offset, total)
		}
		total += int64(c.Length)
	}
	if total != int64(len(data)) || !bytes.Equal(reassembled, data) {
		t.Fatalf("delivered %d bytes of a %d byte stream", total, len(data))
	}
}

func TestCallbackErrorAborts(t *testing.T) {
	fact, err := rabin.NewFactory(64, testParms)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	sgm := testSegmenter(t, fact)
	procErr := sgm.Process(
		bytes.NewReader(testutil.GenerateDataBlock(100_000, 3)),
		func(Chunk, []byte) error { return boom },
	)
	if procErr != boom {
		t.Fatalf("expected the callback error back, got: %v", procErr)
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := New(Config{MaxChunkSize: 1024}); err != ErrNoFactory {
		t.Fatalf("expected ErrNoFactory, got: %v", err)
	}

	fact, _ := fixedsize.NewFactory(512)
	if _, err := New(Config{NewChunker: fact}); err != ErrInvalidMaxChunkSize {
		t.Fatalf("expected ErrInvalidMaxChunkSize, got: %v", err)
	}
}
