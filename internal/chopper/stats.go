package chopper

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/stream-chop/chopper/internal/chopper/util"

	"github.com/ipfs/go-qringbuf"
)

// the code as-written expects the steps to be numerically ordered
var textstatsDistributionPercentiles = [...]int{3, 10, 25, 50, 95}

type statSummary struct {
	EventType string     `json:"event"`
	Chunks    chunkStats `json:"chunks"`
	SysStats  struct {
		ArgvExpanded []string `json:"argvExpanded"`
		ArgvInitial  []string `json:"argvInitial"`
		qringbuf.Stats
		ElapsedNsecs int64 `json:"elapsedNanoseconds"`

		// getrusage() section
		CpuUserNsecs int64 `json:"cpuUserNanoseconds"`
		CpuSysNsecs  int64 `json:"cpuSystemNanoseconds"`
		MaxRssBytes  int64 `json:"maxMemoryUsed"`
		MinFlt       int64 `json:"cacheMinorFaults"`
		MajFlt       int64 `json:"cacheMajorFaults"`
		BioRead      int64 `json:"blockIoReads,omitempty"`
		BioWrite     int64 `json:"blockIoWrites,omitempty"`
		Sigs         int64 `json:"signalsReceived,omitempty"`
		CtxSwYield   int64 `json:"contextSwitchYields"`
		CtxSwForced  int64 `json:"contextSwitchForced"`

		// for context
		PageSize  int    `json:"pageSize"`
		NumCPU    int    `json:"cpuCount"`
		GoVersion string `json:"goVersion"`
	} `json:"sys"`
}

type chunkStats struct {
	// the map is used to construct the array for display at the very end
	countTracker map[int]*sameSizeChunkStats

	Count         int64 `json:"count"`
	PayloadBytes  int64 `json:"payload"`
	UniqueCount   int64 `json:"uniqueCount"`
	UniquePayload int64 `json:"uniquePayload"`
	MinSize       int   `json:"minSize"`
	MaxSize       int   `json:"maxSize"`

	ChunkSizeCounts []sameSizeChunkStats `json:"distinctlySizedChunkCounts"`
}
type sameSizeChunkStats struct {
	CountUniqueChunksAtSize int64 `json:"count"`
	SizeChunk               int   `json:"chunkSize"`
}
type uniqueChunkStats struct {
	sizeChunk int
	seenTimes int64
}

func (chp *Chopper) OutputSummary() {

	// no stats emitters - nowhere to output
	if chp.cfg.emitters[emStatsText] == nil && chp.cfg.emitters[emStatsJsonl] == nil {
		return
	}

	smr := &chp.statSummary
	var uniqueCount, uniqueWeight int64

	if chp.seenChunks != nil && len(chp.seenChunks) > 0 {
		for _, s := range chp.seenChunks {
			uniqueCount++
			uniqueWeight += int64(s.sizeChunk)
		}
		smr.Chunks.UniqueCount = uniqueCount
		smr.Chunks.UniquePayload = uniqueWeight

		for _, c := range smr.Chunks.countTracker {
			smr.Chunks.ChunkSizeCounts = append(smr.Chunks.ChunkSizeCounts, *c)
		}
		sort.Slice(smr.Chunks.ChunkSizeCounts, func(i, j int) bool {
			return smr.Chunks.ChunkSizeCounts[i].SizeChunk < smr.Chunks.ChunkSizeCounts[j].SizeChunk
		})
	}

	if statsJsonlOut := chp.cfg.emitters[emStatsJsonl]; statsJsonlOut != nil {
		// emit the JSON last, so that piping to e.g. `jq` works nicer
		defer func() {

			// because the golang encoder is garbage
			if smr.Chunks.ChunkSizeCounts == nil {
				smr.Chunks.ChunkSizeCounts = []sameSizeChunkStats{}
			}

			json, err := json.Marshal(smr)
			if err != nil {
				log.Fatalf("Encoding stats-jsonl failed: %s", err)
			}

			if _, err := fmt.Fprintf(statsJsonlOut, "%s\n", json); err != nil {
				log.Fatalf("Emitting '%s' failed: %s", emStatsJsonl, err)
			}
		}()
	}

	statsTextOut := chp.cfg.emitters[emStatsText]
	if statsTextOut == nil {
		return
	}

	writeTextOutf := func(f string, args ...interface{}) {
		if _, err := fmt.Fprintf(statsTextOut, f, args...); err != nil {
			log.Fatalf("Emitting '%s' failed: %s", emStatsText, err)
		}
	}

	writeTextOutf(
		"\nProcessing took %0.2f seconds using %0.2f vCPU and %0.2f MiB peak memory"+
			"\nPerforming %s system reads using %0.2f vCPU at about %0.2f MiB/s"+
			"\nIngesting payload of:%17s bytes\n\n",

		float64(smr.SysStats.ElapsedNsecs)/
			1000000000,

		float64(smr.SysStats.CpuUserNsecs)/
			float64(smr.SysStats.ElapsedNsecs),

		float64(smr.SysStats.MaxRssBytes)/
			(1024*1024),

		util.Commify64(smr.SysStats.ReadCalls),

		float64(smr.SysStats.CpuSysNsecs)/
			float64(smr.SysStats.ElapsedNsecs),

		(float64(smr.Chunks.PayloadBytes)/(1024*1024))/
			(float64(smr.SysStats.ElapsedNsecs)/1000000000),

		util.Commify64(smr.Chunks.PayloadBytes),
	)

	if smr.Chunks.Count > 0 {
		writeTextOutf(
			"Streaming cut up as:%18s chunks between %s and %s bytes long\n",
			util.Commify64(smr.Chunks.Count),
			util.Commify(smr.Chunks.MinSize),
			util.Commify(smr.Chunks.MaxSize),
		)
	}

	if uniqueCount == 0 {
		return
	}

	descParts := make([]string, 0, 32)

	descParts = append(descParts, fmt.Sprintf(
		"Dataset deduped into:%17s bytes over %s unique chunks\n"+
			"%44s%.02f%% of original, %.01fx smaller\n"+
			`       Counts\Sizes:`,
		util.Commify64(uniqueWeight), util.Commify64(uniqueCount),
		"",
		100*float64(uniqueWeight)/float64(smr.Chunks.PayloadBytes),
		float64(smr.Chunks.PayloadBytes)/float64(uniqueWeight),
	))

	for i, val := range textstatsDistributionPercentiles {
		if i == 0 {
			descParts = append(descParts, fmt.Sprintf(" %5d%%", val))
		} else {
			descParts = append(descParts, fmt.Sprintf(" %8d%%", val))
		}
	}
	descParts = append(descParts, " |      Avg\n")
	descParts = append(descParts, chunkSizeDistribution(smr.Chunks, uniqueCount, uniqueWeight))

	writeTextOutf("%s\n", strings.Join(descParts, ""))
}

func chunkSizeDistribution(cs chunkStats, uCount, uWeight int64) (distLine string) {

	distChunks := make([][]byte, len(textstatsDistributionPercentiles))

	for i, step := range textstatsDistributionPercentiles {
		threshold := 1 + int64(float64(uCount*int64(step))/100)

		// outright skip this position if the next threshold is identical
		if i+1 < len(textstatsDistributionPercentiles) &&
			threshold == 1+int64(float64(uCount*int64(textstatsDistributionPercentiles[i+1]))/100) {
			continue
		}

		var runningCount int64
		for _, sc := range cs.ChunkSizeCounts {
			runningCount += sc.CountUniqueChunksAtSize
			if runningCount >= threshold {
				distChunks[i] = util.Commify(sc.SizeChunk)
				break
			}
		}
	}

	dist := make([]byte, 0, len(distChunks)*10)
	for _, formattedSize := range distChunks {
		dist = append(dist, fmt.Sprintf(" %9s", formattedSize)...)
	}

	return fmt.Sprintf(
		"%19s:%s |%9s\n",
		util.Commify64(uCount),
		dist,
		util.Commify64(
			uWeight/uCount,
		),
	)
}
