package buzhash

import (
	"fmt"

	"github.com/stream-chop/chopper/chunker"
	cnkbuzhash "github.com/stream-chop/chopper/chunker/buzhash"
	chpchunker "github.com/stream-chop/chopper/internal/chopper/chunker"

	"github.com/stream-chop/chopper/internal/chopper/util"
	getopt "github.com/pborman/getopt/v2"
	"github.com/pborman/options"
)

type config struct {
	MinSize int `getopt:"--min-size  Minimum chunk size. Default:"`
	AvgSize int `getopt:"--avg-size  Target average chunk size, rounded down to a power of two for masking. Default:"`
	MaxSize int `getopt:"--max-size  Maximum chunk size: a chunk is force-cut here if no boundary fires. Default:"`
}

func NewChunker(
	args []string,
) (
	_ chunker.Factory,
	_ chpchunker.InstanceConstants,
	initErrs []string,
) {

	c := config{
		MinSize: 64 * chunker.KiB,
		AvgSize: 256 * chunker.KiB,
		MaxSize: chunker.MiB,
	}

	optSet := getopt.New()
	if err := options.RegisterSet("", &c, optSet); err != nil {
		initErrs = []string{fmt.Sprintf("option set registration failed: %s", err)}
		return
	}

	// on nil-args the "error" is the help text to be incorporated into
	// the larger help display
	if args == nil {
		initErrs = util.SubHelp(
			"Comparison chunker based on hashing by cyclic polynomial (buzhash),\n"+
				"honoring the same size parameters and chunk contract as 'rabin' but\n"+
				"with its own, incompatible boundary placement.",
			optSet,
		)
		return
	}

	// bail early if getopt fails
	if initErrs = util.ArgParse(args, optSet); len(initErrs) > 0 {
		return
	}

	fact, err := cnkbuzhash.NewFactory(chunker.SizeParms{
		MinChunkSize: c.MinSize,
		AvgChunkSize: c.AvgSize,
		MaxChunkSize: c.MaxSize,
	})
	if err != nil {
		initErrs = append(initErrs, err.Error())
		return
	}

	return fact, chpchunker.InstanceConstants{
		MinChunkSize: c.MinSize,
		MaxChunkSize: c.MaxSize,
	}, initErrs
}
