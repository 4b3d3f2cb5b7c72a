package cuckoo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, capacity uint32) *CuckooFilter {
	t.Helper()
	f, err := New(capacity, 4, 500, 1.0, false, 2, WithRand(rand.New(rand.NewSource(42))))
	require.NoError(t, err)
	return f
}

func TestCuckooAddCheck(t *testing.T) {
	f := newTestFilter(t, 1000)
	require.NoError(t, f.Add([]byte("alpha")))
	require.True(t, f.Check([]byte("alpha")))
	require.False(t, f.Check([]byte("beta")))
}

func TestCuckooRemove(t *testing.T) {
	f := newTestFilter(t, 1000)
	require.NoError(t, f.Add([]byte("x")))
	require.True(t, f.Remove([]byte("x")))
	require.False(t, f.Check([]byte("x")))
	require.False(t, f.Remove([]byte("x")))
}

func TestCuckooDuplicateAddIsNoop(t *testing.T) {
	f := newTestFilter(t, 1000)
	require.NoError(t, f.Add([]byte("dup")))
	require.NoError(t, f.Add([]byte("dup")))
	require.Equal(t, uint32(1), f.NumElements())
	require.True(t, f.Check([]byte("dup")))
}

func TestCuckooFillsUpAndExpandsWhenAuto(t *testing.T) {
	f, err := New(64, 2, 50, 1.0, true, 1, WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)

	inserted := 0
	for i := 0; i < 200; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		if err := f.Add(key); err == nil {
			inserted++
		}
	}
	require.Greater(t, inserted, 100)
	require.Greater(t, f.NumBuckets(), 32)
}

func TestCuckooFailsWithoutAutoExpandWhenFull(t *testing.T) {
	f, err := New(8, 1, 10, 1.0, false, 1, WithRand(rand.New(rand.NewSource(3))))
	require.NoError(t, err)

	failed := false
	for i := 0; i < 100; i++ {
		key := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
		if err := f.Add(key); err != nil {
			failed = true
			break
		}
	}
	require.True(t, failed)
}

func TestCuckooExpandPreservesFindability(t *testing.T) {
	f, err := New(64, 2, 50, 1.0, true, 1, WithRand(rand.New(rand.NewSource(11))))
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

func TestCuckooRoundTrip(t *testing.T) {
	f := newTestFilter(t, 500)
	words := []string{"one", "two", "three", "four"}
	for _, w := range words {
		require.NoError(t, f.Add([]byte(w)))
	}

	data := f.Export()
	loaded, err := Load(data)
	require.NoError(t, err)
	for _, w := range words {
		require.True(t, loaded.Check([]byte(w)))
	}
	require.Equal(t, f.NumElements(), loaded.NumElements())
}
