package cuckoo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCounting(t *testing.T, capacity uint32) *CountingCuckooFilter {
	t.Helper()
	f, err := NewCounting(capacity, 4, 500, 1.0, false, 2, WithRand(rand.New(rand.NewSource(42))))
	require.NoError(t, err)
	return f
}

func TestCountingCuckooAddIncrementsCount(t *testing.T) {
	f := newTestCounting(t, 1000)
	require.NoError(t, f.Add([]byte("dup")))
	require.NoError(t, f.Add([]byte("dup")))
	require.Equal(t, uint32(2), f.Count([]byte("dup")))
}

func TestCountingCuckooRemoveDecrementsThenVacates(t *testing.T) {
	f := newTestCounting(t, 1000)
	require.NoError(t, f.Add([]byte("k")))
	require.NoError(t, f.Add([]byte("k")))

	require.True(t, f.Remove([]byte("k")))
	require.True(t, f.Check([]byte("k")))
	require.Equal(t, uint32(1), f.Count([]byte("k")))

	require.True(t, f.Remove([]byte("k")))
	require.False(t, f.Check([]byte("k")))
}

func TestCountingCuckooExpandPreservesFindability(t *testing.T) {
	f, err := NewCounting(64, 2, 50, 1.0, true, 1, WithRand(rand.New(rand.NewSource(11))))
	require.NoError(t, err)

	var added [][]byte
	startBuckets := f.NumBuckets()
	for i := 0; i < 400 && f.NumBuckets() == startBuckets; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		if err := f.Add(key); err == nil {
			added = append(added, key)
		}
	}
	require.Greater(t, f.NumBuckets(), startBuckets, "test didn't trigger an expand")

	for _, key := range added {
		require.True(t, f.Check(key), "key %v unfindable after expand", key)
	}
}

func TestCountingCuckooRoundTrip(t *testing.T) {
	f := newTestCounting(t, 500)
	f.Add([]byte("a"))
	f.Add([]byte("a"))
	f.Add([]byte("b"))

	data := f.Export()
	loaded, err := LoadCounting(data)
	require.NoError(t, err)
	require.Equal(t, uint32(2), loaded.Count([]byte("a")))
	require.Equal(t, uint32(1), loaded.Count([]byte("b")))
}
