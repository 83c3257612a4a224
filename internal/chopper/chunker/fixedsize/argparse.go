package fixedsize

import (
	"fmt"
	"strconv"

	"github.com/stream-chop/chopper/chunker"
	cnkfixedsize "github.com/stream-chop/chopper/chunker/fixedsize"
	chpchunker "github.com/stream-chop/chopper/internal/chopper/chunker"

	"github.com/stream-chop/chopper/internal/chopper/util"
)

func NewChunker(
	args []string,
) (
	_ chunker.Factory,
	_ chpchunker.InstanceConstants,
	initErrs []string,
) {

	// on nil-args the "error" is the help text to be incorporated into
	// the larger help display
	if args == nil {
		initErrs = util.SubHelp(
			"Splits the stream into equally sized chunks. Requires a single parameter:\n"+
				"the size of each chunk in bytes. A baseline control algorithm: boundaries\n"+
				"never follow content, so shifted edits defeat deduplication entirely.\n",
			nil,
		)
		return
	}

	var size int

	if len(args) != 2 {
		initErrs = append(initErrs, "chunker requires an integer argument, the size of each chunk in bytes")
	} else {
		sizearg, err := strconv.ParseUint(
			args[1][2:], // stripping off '--'
			10,
			25, // 25bits == 32 * 1024 * 1024 == 32MiB
		)
		if err != nil {
			initErrs = append(initErrs, fmt.Sprintf("argument parse failed: %s", err))
		} else {
			size = int(sizearg)
		}
	}

	fact, err := cnkfixedsize.NewFactory(size)
	if err != nil {
		initErrs = append(initErrs, fmt.Sprintf(
			"provided chunk size '%s' rejected: %s",
			util.Commify(size),
			err,
		))
		return
	}

	return fact, chpchunker.InstanceConstants{
		MinChunkSize: size,
		MaxChunkSize: size,
	}, initErrs
}
