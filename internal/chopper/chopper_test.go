package chopper

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stream-chop/chopper/internal/constants"
	"github.com/stream-chop/chopper/internal/testutil"
)

type chunkEvent struct {
	Offset int64
	Length int
	Digest string
	Dup    bool
}

func TestEngineDedupAccounting(t *testing.T) {

	repeats := 4
	blockSize := 8192
	if constants.LongTests {
		repeats = 16
		blockSize = 4 * 1024 * 1024
	}

	block := testutil.GenerateDataBlock(blockSize, 42)
	data := bytes.Repeat(block, repeats)

	chp := NewFromArgv([]string{
		"stream-chopper",
		"--chunker=rabin_min-size=64_avg-size=256_max-size=1024",
		"--emit-stdout=none",
		"--emit-stderr=none",
	})

	events := make(chan IngestionEvent, 128)
	procErr := make(chan error, 1)
	go func() {
		procErr <- chp.ProcessReader(bytes.NewReader(data), events)
	}()

	var chunks []chunkEvent
	for {
		ev, chanOpen := <-events
		if !chanOpen {
			break
		} else if ev.Type == ErrorString {
			t.Fatalf("Unexpected stream processing error: %s", ev.Body)
		} else if ev.Type == NewChunkJsonl {
			var c chunkEvent
			if err := json.Unmarshal([]byte(ev.Body), &c); err != nil {
				t.Fatalf("Unexpected event unmarshal error: %s", err)
			}
			chunks = append(chunks, c)
		}
	}

	if err := <-procErr; err != nil {
		t.Fatalf("Unexpected stream processing failure: %s", err)
	}

	var nextOffset int64
	var dupCount int64
	for i, c := range chunks {
		if c.Offset != nextOffset {
			t.Fatalf(
				"chunk %d starts at offset %d instead of expected %d",
				i, c.Offset, nextOffset,
			)
		}
		if c.Length > 1024 || (c.Length < 64 && i != len(chunks)-1) {
			t.Fatalf("chunk %d of size %d violates the configured bounds", i, c.Length)
		}
		if c.Digest == "" {
			t.Fatalf("chunk %d carries no digest", i)
		}
		if c.Dup {
			dupCount++
		}
		nextOffset += int64(c.Length)
	}

	if nextOffset != int64(len(data)) {
		t.Fatalf(
			"chunk lengths cover %d bytes of a %d byte stream",
			nextOffset, len(data),
		)
	}

	smr := chp.statSummary
	if smr.Chunks.Count != int64(len(chunks)) {
		t.Fatalf(
			"summary counted %d chunks while %d were emitted",
			smr.Chunks.Count, len(chunks),
		)
	}
	if smr.Chunks.PayloadBytes != int64(len(data)) {
		t.Fatalf(
			"summary counted %d payload bytes of %d ingested",
			smr.Chunks.PayloadBytes, len(data),
		)
	}

	// a stream of identical blocks must dedup: all but the boundary-straddling
	// chunks of every repeat past the first should come back as duplicates
	if dupCount == 0 {
		t.Fatal("no duplicate chunks detected over a heavily repeating stream")
	}

	var uniquePayload int64
	for _, s := range chp.seenChunks {
		uniquePayload += int64(s.sizeChunk)
	}
	if uniquePayload >= int64(len(data)) {
		t.Fatalf(
			"unique payload of %d did not shrink a %d byte repeating stream",
			uniquePayload, len(data),
		)
	}
}

func TestEngineEmptyInput(t *testing.T) {

	chp := NewFromArgv([]string{
		"stream-chopper",
		"--chunker=fixed-size_65536",
		"--emit-stdout=none",
		"--emit-stderr=none",
	})

	events := make(chan IngestionEvent, 16)
	procErr := make(chan error, 1)
	go func() {
		procErr <- chp.ProcessReader(bytes.NewReader(nil), events)
	}()

	for ev := range events {
		if ev.Type == ErrorString {
			t.Fatalf("Unexpected stream processing error: %s", ev.Body)
		} else if ev.Type == NewChunkJsonl {
			t.Fatalf("Unexpected chunk emitted for empty input: %s", ev.Body)
		}
	}

	if err := <-procErr; err != nil {
		t.Fatalf("Unexpected stream processing failure: %s", err)
	}

	if chp.statSummary.Chunks.Count != 0 {
		t.Fatalf("summary counted %d chunks over empty input", chp.statSummary.Chunks.Count)
	}
}

func TestBadPluginSpecs(t *testing.T) {

	for _, requested := range []string{
		"",
		"no-such-chunker",
		"rabin_min-size=banana",
		"rabin_window-size=50",
		"fixed-size",
		"fixed-size_0",
		"buzhash_min-size=1",
	} {
		chp := &Chopper{cfg: config{requestedChunker: requested}}
		chp.cfg.initArgvParser()
		if errs := chp.setupChunker(); len(errs) == 0 {
			t.Fatalf("chunker spec '%s' was accepted", requested)
		}
	}
}

func TestBadEmitterSpecs(t *testing.T) {

	for _, tc := range [][]string{
		{"no-such-emitter"},
		{"stats-text", "chunks-jsonl"}, // stats-text must stand alone
		{"stats-jsonl", "stats-jsonl"},
	} {
		chp := &Chopper{cfg: config{
			emittersStdErr: tc,
			emitters: emissionTargets{
				emNone:        nil,
				emStatsText:   nil,
				emStatsJsonl:  nil,
				emChunksJsonl: nil,
			},
		}}
		if errs := chp.setupEmitters(); len(errs) == 0 {
			t.Fatalf("emitter spec %v was accepted", tc)
		}
	}
}
