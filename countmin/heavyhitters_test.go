package countmin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeavyHittersBoundedCardinality(t *testing.T) {
	h, err := NewHeavyHitters(5, 2000, 3)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		key := []byte{byte(i)}
		for j := 0; j <= i; j++ {
			h.Add(key)
		}
	}
	require.LessOrEqual(t, len(h.HeavyHittersMap()), 3)
}

func TestHeavyHittersKeepsLargest(t *testing.T) {
	h, err := NewHeavyHitters(5, 2000, 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		h.Add([]byte("small"))
	}
	for i := 0; i < 50; i++ {
		h.Add([]byte("medium"))
	}
	for i := 0; i < 500; i++ {
		h.Add([]byte("large"))
	}

	hitters := h.HeavyHittersMap()
	require.Contains(t, hitters, "large")
	require.Contains(t, hitters, "medium")
	require.NotContains(t, hitters, "small")
}

func TestHeavyHittersRefreshesExistingKey(t *testing.T) {
	h, err := NewHeavyHitters(5, 2000, 1)
	require.NoError(t, err)
	h.Add([]byte("only"))
	before := h.HeavyHittersMap()["only"]
	h.Add([]byte("only"))
	after := h.HeavyHittersMap()["only"]
	require.Greater(t, after, before)
}
