package chpchunker

import "github.com/stream-chop/chopper/chunker"

// InstanceConstants is what a chunker plugin reports about itself after
// parsing its sub-options: the engine sizes the ring buffer off MaxChunkSize.
type InstanceConstants struct {
	MinChunkSize int
	MaxChunkSize int
}

// Initializer parses a plugin's CLI sub-arguments and hands back a factory
// for the engine's streaming passes. Called with nil args it returns its help
// text via initErrorStrings, to be folded into the larger usage display.
type Initializer func(
	chunkerCLISubArgs []string,
) (
	fact chunker.Factory,
	constants InstanceConstants,
	initErrorStrings []string,
)
