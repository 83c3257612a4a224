package chopper

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/stream-chop/chopper/chunker"
	chpchunker "github.com/stream-chop/chopper/internal/chopper/chunker"
	"github.com/stream-chop/chopper/internal/chopper/chunker/buzhash"
	"github.com/stream-chop/chopper/internal/chopper/chunker/fixedsize"
	"github.com/stream-chop/chopper/internal/chopper/chunker/rabin"
	"github.com/stream-chop/chopper/internal/chopper/digest"
	"github.com/stream-chop/chopper/segmenter"

	"github.com/stream-chop/chopper/internal/chopper/util"
	getopt "github.com/pborman/getopt/v2"
	"github.com/pborman/options"
)

var availableChunkers = map[string]chpchunker.Initializer{
	"fixed-size": fixedsize.NewChunker,
	"rabin":      rabin.NewChunker,
	"buzhash":    buzhash.NewChunker,
}

// a decompressor wraps the raw input stream before any chunking takes place
type decompressorInitializer func(io.Reader) (io.Reader, error)

var availableDecompressors = map[string]decompressorInitializer{
	"none": nil,
	"zstd": func(r io.Reader) (io.Reader, error) {
		return zstd.NewReader(r)
	},
	"xz": func(r io.Reader) (io.Reader, error) {
		return xz.NewReader(r)
	},
}

type config struct {
	optSet *getopt.Set

	// where to output
	emitters emissionTargets

	//
	// Bulk of CLI options definition starts here, the rest further down in initArgvParser()
	//

	Help    bool `getopt:"-h --help             Display basic help"`
	HelpAll bool `getopt:"--help-all            Display full help including options for every currently supported chunker"`

	emittersStdErr []string // Emitter spec: option/helptext in initArgvParser()
	emittersStdOut []string // Emitter spec: option/helptext in initArgvParser()

	// no-option-attached, parsing error accumulators
	erroredChunkers []string

	RingBufferSize     int `getopt:"--ring-buffer-size=bytes        The size of the quantized ring buffer used for ingestion. Default:"`
	RingBufferSectSize int `getopt:"--ring-buffer-sync-size=bytes   (EXPERT SETTING) The size of each buffer synchronization sector. Default:"` // option vaguely named 'sync' to not confuse users
	RingBufferMinRead  int `getopt:"--ring-buffer-min-sysread=bytes (EXPERT SETTING) Perform next read(2) only when the specified amount of free space is available in the buffer. Default:"`

	StatsActive uint `getopt:"--stats-active=uint   A bitfield representing activated stat aggregations: bit0:ChunkSizing, bit1:RingbufferTiming. Default:"`

	hashFunc              string // hash function to use: option/helptext in initArgvParser()
	requestedChunker      string // Chunker spec: option/helptext in initArgvParser()
	requestedDecompressor string // Input decompressor: option/helptext in initArgvParser()
}

const (
	statsChunks = 1 << iota
	statsRingbuf
)

type emissionTargets map[string]io.Writer

const (
	emNone        = "none"
	emStatsText   = "stats-text"
	emStatsJsonl  = "stats-jsonl"
	emChunksJsonl = "chunks-jsonl"
)

// where the CLI initial error messages go
var argParseErrOut = os.Stderr

func NewFromArgv(argv []string) (chp *Chopper) {

	chp = &Chopper{
		// Some minimal non-controversial defaults, all overridable
		cfg: config{
			StatsActive: statsChunks,

			hashFunc:              "sha2-256",
			requestedDecompressor: "none",

			RingBufferSize: 24 * 1024 * 1024, // SANCHECK low seems good somehow... fits in L3 maybe?

			//SANCHECK: these numbers have not been validated
			RingBufferMinRead:  256 * 1024,
			RingBufferSectSize: 64 * 1024,

			emittersStdOut: []string{emChunksJsonl},
			emittersStdErr: []string{emStatsText},

			// not defaults but rather the list of known/configured emitters
			emitters: emissionTargets{
				emNone:        nil,
				emStatsText:   nil,
				emStatsJsonl:  nil,
				emChunksJsonl: nil,
			},
		},
	}

	// init some constants
	{
		s := &chp.statSummary
		s.EventType = "summary"
		s.Chunks.countTracker = make(map[int]*sameSizeChunkStats, 256) // SANCHECK: somewhat arbitrary

		s.SysStats.ArgvInitial = make([]string, len(argv)-1)
		copy(s.SysStats.ArgvInitial, argv[1:])

		s.SysStats.NumCPU = runtime.NumCPU()
		s.SysStats.PageSize = os.Getpagesize()
		s.SysStats.GoVersion = runtime.Version()
	}

	cfg := &chp.cfg
	cfg.initArgvParser()

	// accumulator for multiple errors, to present to the user all at once
	argParseErrs := util.ArgParse(argv, cfg.optSet)

	if cfg.Help || cfg.HelpAll {
		cfg.printUsage()
		os.Exit(0)
	}

	if _, exists := digest.AvailableHashers[cfg.hashFunc]; !exists {
		argParseErrs = append(argParseErrs, fmt.Sprintf(
			"Invalid hash function '%s' requested via '--hash=algname'. Available hash names are %s",
			cfg.hashFunc,
			util.AvailableMapKeys(digest.AvailableHashers),
		))
	} else {
		chp.hasher = digest.AvailableHashers[cfg.hashFunc].Maker()
	}

	if _, exists := availableDecompressors[cfg.requestedDecompressor]; !exists {
		argParseErrs = append(argParseErrs, fmt.Sprintf(
			"Decompressor '%s' not found. Available decompressor names are: %s",
			cfg.requestedDecompressor,
			util.AvailableMapKeys(availableDecompressors),
		))
	}

	argParseErrs = append(argParseErrs, chp.setupChunker()...)
	argParseErrs = append(argParseErrs, chp.setupEmitters()...)

	if len(argParseErrs) != 0 {
		fmt.Fprint(argParseErrOut, "\nFatal error parsing arguments:\n\n")
		cfg.printUsage()

		sort.Strings(argParseErrs)
		fmt.Fprintf(
			argParseErrOut,
			"Fatal error parsing arguments:\n\t%s\n",
			strings.Join(argParseErrs, "\n\t"),
		)
		os.Exit(1)
	}

	// Opts check out - take a snapshot of what we ended up with
	cfg.optSet.VisitAll(func(o getopt.Option) {
		switch o.LongName() {
		case "help", "help-all":
			// do nothing for these
		default:
			chp.statSummary.SysStats.ArgvExpanded = append(
				chp.statSummary.SysStats.ArgvExpanded, fmt.Sprintf(`--%s=%s`,
					o.LongName(),
					o.Value().String(),
				),
			)
		}
	})
	sort.Strings(chp.statSummary.SysStats.ArgvExpanded)

	return
}

func (cfg *config) printUsage() {
	cfg.optSet.PrintUsage(argParseErrOut)
	if cfg.HelpAll || len(cfg.erroredChunkers) > 0 {
		printPluginUsage(
			argParseErrOut,
			cfg.erroredChunkers,
		)
	} else {
		fmt.Fprint(argParseErrOut, "\nTry --help-all for more info\n\n")
	}
}

func printPluginUsage(
	out io.Writer,
	listChunkers []string,
) {

	// if nothing was requested explicitly - list everything
	if len(listChunkers) == 0 {
		for name, initializer := range availableChunkers {
			if initializer != nil {
				listChunkers = append(listChunkers, name)
			}
		}
	}

	if len(listChunkers) != 0 {
		fmt.Fprint(out, "\n")
		sort.Strings(listChunkers)
		for _, name := range listChunkers {
			fmt.Fprintf(
				out,
				"[C]hunker '%s'\n",
				name,
			)
			_, _, h := availableChunkers[name](nil)
			if len(h) == 0 {
				fmt.Fprint(out, "  -- no helptext available --\n\n")
			} else {
				fmt.Fprintln(out, strings.Join(h, "\n"))
			}
		}
	}

	fmt.Fprint(out, "\n")
}

func (cfg *config) initArgvParser() {
	// The default documented way of using pborman/options is to muck with globals
	// Operate over objects instead, allowing us to re-parse argv multiple times
	o := getopt.New()
	if err := options.RegisterSet("", cfg, o); err != nil {
		log.Fatalf("option set registration failed: %s", err)
	}
	cfg.optSet = o

	// program does not take freeform args
	// need to override this for sensible help render
	o.SetParameters("")

	// Several options have the help-text assembled programmatically
	o.FlagLong(&cfg.hashFunc, "hash", 0,
		"Hash function used for chunk identity, one of: "+util.AvailableMapKeys(digest.AvailableHashers)+". Default:",
		"string",
	)
	o.FlagLong(&cfg.requestedChunker, "chunker", 0,
		"Stream chunking algorithm to use. The chunker is one of: "+util.AvailableMapKeys(availableChunkers),
		"'chnk_opt1_opt2_..._optN'",
	)
	o.FlagLong(&cfg.requestedDecompressor, "decompress", 0,
		"Decompress the input stream before chunking, one of: "+util.AvailableMapKeys(availableDecompressors)+". Default:",
		"string",
	)
	o.FlagLong(&cfg.emittersStdErr, "emit-stderr", 0, fmt.Sprintf(
		"One or more emitters to activate on stdERR. Available emitters are %s. Default: ",
		util.AvailableMapKeys(cfg.emitters),
	), "commaSepEmitters")
	o.FlagLong(&cfg.emittersStdOut, "emit-stdout", 0,
		"One or more emitters to activate on stdOUT. Available emitters same as above. Default: ",
		"commaSepEmitters",
	)
}

func (chp *Chopper) setupEmitters() (argErrs []string) {

	activeStderr := make(map[string]bool, len(chp.cfg.emittersStdErr))
	for _, s := range chp.cfg.emittersStdErr {
		activeStderr[s] = true
		if val, exists := chp.cfg.emitters[s]; !exists {
			argErrs = append(argErrs, fmt.Sprintf("invalid emitter '%s' specified for --emit-stderr. Available emitters are: %s",
				s,
				util.AvailableMapKeys(chp.cfg.emitters),
			))
		} else if s == emNone {
			continue
		} else if val != nil {
			argErrs = append(argErrs, fmt.Sprintf("Emitter '%s' specified more than once", s))
		} else {
			chp.cfg.emitters[s] = os.Stderr
		}
	}
	activeStdout := make(map[string]bool, len(chp.cfg.emittersStdOut))
	for _, s := range chp.cfg.emittersStdOut {
		activeStdout[s] = true
		if val, exists := chp.cfg.emitters[s]; !exists {
			argErrs = append(argErrs, fmt.Sprintf("invalid emitter '%s' specified for --emit-stdout. Available emitters are: %s",
				s,
				util.AvailableMapKeys(chp.cfg.emitters),
			))
		} else if s == emNone {
			continue
		} else if val != nil {
			argErrs = append(argErrs, fmt.Sprintf("Emitter '%s' specified more than once", s))
		} else {
			chp.cfg.emitters[s] = os.Stdout
		}
	}

	for _, exclusiveEmitter := range []string{
		emNone,
		emStatsText,
	} {
		if activeStderr[exclusiveEmitter] && len(activeStderr) > 1 {
			argErrs = append(argErrs, fmt.Sprintf(
				"When specified, emitter '%s' must be the sole argument to --emit-stderr",
				exclusiveEmitter,
			))
		}
		if activeStdout[exclusiveEmitter] && len(activeStdout) > 1 {
			argErrs = append(argErrs, fmt.Sprintf(
				"When specified, emitter '%s' must be the sole argument to --emit-stdout",
				exclusiveEmitter,
			))
		}
	}

	// set couple shortcuts based on emitter config
	chp.emitChunks = (chp.cfg.emitters[emChunksJsonl] != nil)
	chp.trackChunks = ((chp.cfg.StatsActive & statsChunks) == statsChunks)

	return
}

func (chp *Chopper) setupChunker() (argErrs []string) {

	// bail early
	if chp.cfg.requestedChunker == "" {
		return []string{
			"You must specify a stream chunker via '--chunker=algname_opt1_opt2_...'. Available chunker names are: " +
				util.AvailableMapKeys(availableChunkers),
		}
	}

	chunkerArgs := strings.Split(chp.cfg.requestedChunker, "_")
	init, exists := availableChunkers[chunkerArgs[0]]
	if !exists {
		return []string{fmt.Sprintf(
			"Chunker '%s' not found. Available chunker names are: %s",
			chunkerArgs[0],
			util.AvailableMapKeys(availableChunkers),
		)}
	}

	for n := range chunkerArgs {
		if n > 0 {
			chunkerArgs[n] = "--" + chunkerArgs[n]
		}
	}

	fact, chunkerConstants, initErrors := init(chunkerArgs)

	if len(initErrors) == 0 {
		if chunkerConstants.MaxChunkSize < 1 || chunkerConstants.MaxChunkSize > chunker.MaxMaxChunkSize {
			initErrors = append(initErrors, fmt.Sprintf(
				"returned MaxChunkSize constant '%d' out of range [1:%d]",
				chunkerConstants.MaxChunkSize,
				chunker.MaxMaxChunkSize,
			))
		} else if chunkerConstants.MinChunkSize < 0 || chunkerConstants.MinChunkSize > chunkerConstants.MaxChunkSize {
			initErrors = append(initErrors, fmt.Sprintf(
				"returned MinChunkSize constant '%d' out of range [0:%d]",
				chunkerConstants.MinChunkSize,
				chunkerConstants.MaxChunkSize,
			))
		}
	}

	if len(initErrors) > 0 {
		chp.cfg.erroredChunkers = append(chp.cfg.erroredChunkers, chunkerArgs[0])
		for _, e := range initErrors {
			argErrs = append(argErrs, fmt.Sprintf(
				"Initialization of chunker '%s' failed: %s",
				chunkerArgs[0],
				e,
			))
		}
		return
	}

	var sgmErr error
	chp.sgm, sgmErr = segmenter.New(segmenter.Config{
		NewChunker:   fact,
		MaxChunkSize: chunkerConstants.MaxChunkSize,
		BufferSize:   chp.cfg.RingBufferSize,
		SectorSize:   chp.cfg.RingBufferSectSize,
		MinRead:      chp.cfg.RingBufferMinRead,
		Stats:        &chp.statSummary.SysStats.Stats,
		TrackTiming:  ((chp.cfg.StatsActive & statsRingbuf) == statsRingbuf),
	})
	if sgmErr != nil {
		argErrs = append(argErrs, fmt.Sprintf(
			"Initialization of the stream segmenter failed: %s",
			sgmErr,
		))
	}

	return
}
