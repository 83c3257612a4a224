package rabin

import (
	"fmt"

	"github.com/stream-chop/chopper/chunker"
	cnkrabin "github.com/stream-chop/chopper/chunker/rabin"
	chpchunker "github.com/stream-chop/chopper/internal/chopper/chunker"

	"github.com/stream-chop/chopper/internal/chopper/util"
	getopt "github.com/pborman/getopt/v2"
	"github.com/pborman/options"
)

type config struct {
	WindowSize int `getopt:"--window-size  Size of the sliding fingerprint window in bytes: a power of two in [8:64]. Default:"`
	MinSize    int `getopt:"--min-size     Minimum chunk size. Default:"`
	AvgSize    int `getopt:"--avg-size     Target average chunk size, drives the boundary cut-mask. Default:"`
	MaxSize    int `getopt:"--max-size     Maximum chunk size: a chunk is force-cut here if no boundary fires. Default:"`
}

func NewChunker(
	args []string,
) (
	_ chunker.Factory,
	_ chpchunker.InstanceConstants,
	initErrs []string,
) {

	c := config{
		WindowSize: 64,
		MinSize:    64 * chunker.KiB,
		AvgSize:    256 * chunker.KiB,
		MaxSize:    chunker.MiB,
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
			"Content-defined chunker driven by a Rabin rolling fingerprint over a small\n"+
				"sliding window, using the polynomial constants popularized by 'pcompress'.\n"+
				"A boundary fires wherever the masked window checksum hits zero at or past\n"+
				"the minimum chunk size.",
			optSet,
		)
		return
	}

	// bail early if getopt fails
	if initErrs = util.ArgParse(args, optSet); len(initErrs) > 0 {
		return
	}

	fact, err := cnkrabin.NewFactory(c.WindowSize, chunker.SizeParms{
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
