package chopper

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/stream-chop/chopper/internal/chopper/digest"
	"github.com/stream-chop/chopper/internal/chopper/util"
	"github.com/stream-chop/chopper/segmenter"
)

const (
	ErrorString = IngestionEventType(iota)
	NewChunkJsonl
)

type IngestionEvent struct {
	Type IngestionEventType
	Body string
}
type IngestionEventType int

// SANCHECK - we probably want some sort of timeout or somesuch here...
func (chp *Chopper) maybeSendEvent(t IngestionEventType, s string) {
	if chp.externalEventBus != nil {
		chp.externalEventBus <- IngestionEvent{Type: t, Body: s}
	}
}

var preProcessTasks, postProcessTasks func(chp *Chopper)

func (chp *Chopper) ProcessReader(inputReader io.Reader, optionalEventChan chan<- IngestionEvent) (err error) {

	var t0 time.Time

	defer func() {
		if postProcessTasks != nil {
			postProcessTasks(chp)
		}
		if chp.externalEventBus != nil {
			close(chp.externalEventBus)
		}
		chp.statSummary.SysStats.ElapsedNsecs = time.Since(t0).Nanoseconds()
	}()

	chp.externalEventBus = optionalEventChan
	defer func() {
		if err != nil {
			err = fmt.Errorf(
				"failure at byte offset %s of the chunked stream: %s",
				util.Commify64(chp.curStreamOffset),
				err,
			)
			chp.maybeSendEvent(ErrorString, err.Error())
		}
	}()

	if preProcessTasks != nil {
		preProcessTasks(chp)
	}
	t0 = time.Now()

	if chp.trackChunks {
		chp.seenChunks = make(seenChunks, 1024) // SANCHECK: somewhat arbitrary, but eh...
	}

	if decompInit := availableDecompressors[chp.cfg.requestedDecompressor]; decompInit != nil {
		if inputReader, err = decompInit(inputReader); err != nil {
			return fmt.Errorf(
				"initializing the '%s' decompressor failed: %s",
				chp.cfg.requestedDecompressor,
				err,
			)
		}
	}

	return chp.sgm.Process(inputReader, chp.appendChunk)
}

func (chp *Chopper) appendChunk(c segmenter.Chunk, data []byte) error {

	stats := &chp.statSummary.Chunks
	stats.Count++
	stats.PayloadBytes += int64(c.Length)
	if stats.MinSize == 0 || c.Length < stats.MinSize {
		stats.MinSize = c.Length
	}
	if c.Length > stats.MaxSize {
		stats.MaxSize = c.Length
	}

	// hashing is skipped entirely when nothing will consume the digests
	var dgst []byte
	if chp.trackChunks || chp.emitChunks || chp.externalEventBus != nil {
		chp.hasher.Reset()
		chp.hasher.Write(data)
		dgst = chp.hasher.Sum(nil)
	}

	var dup bool
	if chp.trackChunks {
		k := digest.SeenKey(dgst)
		if s, seen := chp.seenChunks[k]; seen {
			dup = true
			s.seenTimes++
		} else {
			chp.seenChunks[k] = &uniqueChunkStats{
				sizeChunk: c.Length,
				seenTimes: 1,
			}

			if _, exists := stats.countTracker[c.Length]; !exists {
				stats.countTracker[c.Length] = &sameSizeChunkStats{
					SizeChunk: c.Length,
				}
			}
			stats.countTracker[c.Length].CountUniqueChunksAtSize++
		}
	}

	if dgst != nil && (chp.emitChunks || chp.externalEventBus != nil) {
		jsonl := fmt.Sprintf(
			"{\"event\":  \"chunk\",  \"offset\":%12d, \"length\":%7d, %-74s, \"dup\":%7t }\n",
			c.Offset,
			c.Length,
			fmt.Sprintf(`"digest":"%x"`, dgst),
			dup,
		)
		chp.maybeSendEvent(NewChunkJsonl, jsonl)

		if chp.emitChunks {
			if _, err := io.WriteString(chp.cfg.emitters[emChunksJsonl], jsonl); err != nil {
				chp.maybeSendEvent(ErrorString, err.Error())
				log.Fatalf("Emitting '%s' failed: %s", emChunksJsonl, err)
			}
		}
	}

	chp.curStreamOffset = c.Offset + int64(c.Length)
	return nil
}
