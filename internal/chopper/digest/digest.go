// Package digest holds the registry of hash functions available for chunk
// identity. Identity digests feed the duplicate-chunk accounting and the
// chunks-jsonl emitter; they never touch boundary placement.
package digest

import (
	"hash"

	blake2b "github.com/minio/blake2b-simd"
	sha256 "github.com/minio/sha256-simd"
	"github.com/twmb/murmur3"
	"golang.org/x/crypto/sha3"
)

// SeenKeySize is how much of a digest the duplicate tracker keys on. Keeping
// it at 128 bits makes the seen map materially smaller, and conveniently is
// the full output size of the murmur3 option.
const SeenKeySize = 128 / 8

type Hasher struct {
	Maker func() hash.Hash

	// NonCryptographic hashers are fine for dedup estimation but must not be
	// used where collision resistance matters.
	NonCryptographic bool
}

var AvailableHashers = map[string]Hasher{
	"sha2-256": {
		Maker: sha256.New,
	},
	"sha3-512": {
		Maker: sha3.New512,
	},
	"blake2b-256": {
		Maker: blake2b.New256,
	},
	"murmur3-128": {
		Maker:            func() hash.Hash { return murmur3.New128() },
		NonCryptographic: true,
	},
}

// SeenKey truncates a digest to the tracker key size. Every registered hasher
// produces at least SeenKeySize bytes.
func SeenKey(digest []byte) (k [SeenKeySize]byte) {
	copy(k[:], digest)
	return
}
