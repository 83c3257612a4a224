// Package testutil provides deterministic data generators shared by tests.
package testutil

import "math/rand"

// GenerateDataBlock returns size bytes of seeded pseudo-random data. The same
// seed always yields the same block.
func GenerateDataBlock(size int, seed int64) []byte {
	block := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(block)
	return block
}

// PatternedData returns size bytes of a repeating 1 KiB ramp, handy when a
// test wants compressible, self-similar input.
func PatternedData(size int) []byte {
	block := make([]byte, size)
	for i := range block {
		block[i] = byte(i % 1024)
	}
	return block
}
