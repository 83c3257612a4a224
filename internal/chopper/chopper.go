package chopper

import (
	"hash"

	"github.com/stream-chop/chopper/internal/chopper/digest"
	"github.com/stream-chop/chopper/segmenter"
)

type Chopper struct {
	// speederization shortcut flags for internal logic
	emitChunks  bool
	trackChunks bool

	curStreamOffset  int64
	cfg              config
	statSummary      statSummary
	sgm              *segmenter.Segmenter
	hasher           hash.Hash
	externalEventBus chan<- IngestionEvent
	seenChunks       seenChunks
}

type seenChunks map[[digest.SeenKeySize]byte]*uniqueChunkStats
