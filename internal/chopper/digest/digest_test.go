package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisteredHashers(t *testing.T) {
	payload := []byte("some reasonably unremarkable payload")

	for name, h := range AvailableHashers {
		t.Run(name, func(t *testing.T) {
			hasher := h.Maker()
			require.NotNil(t, hasher, "maker produced no hasher")
			require.GreaterOrEqual(t, hasher.Size(), SeenKeySize,
				"digest too short to key the duplicate tracker")

			hasher.Write(payload)
			d1 := hasher.Sum(nil)

			hasher.Reset()
			hasher.Write(payload)
			d2 := hasher.Sum(nil)

			require.Equal(t, d1, d2, "hasher is not deterministic across Reset")
			require.Len(t, d1, hasher.Size())
		})
	}
}

func TestSeenKeyTruncation(t *testing.T) {
	h := AvailableHashers["sha2-256"].Maker()
	h.Write([]byte("abc"))
	d := h.Sum(nil)

	k := SeenKey(d)
	require.Equal(t, d[:SeenKeySize], k[:])
}
