package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFNV1aSeededDeterministic(t *testing.T) {
	h := FNV1aSeeded{}
	a := h.HashMany([]byte("google.com"), 5)
	b := h.HashMany([]byte("google.com"), 5)
	require.Equal(t, a, b)
	require.Len(t, a, 5)
}

func TestFNV1aSeededStringByteEquivalence(t *testing.T) {
	h := FNV1aSeeded{}
	a := h.HashMany(EncodeString("hello world"), 4)
	b := h.HashMany([]byte("hello world"), 4)
	require.Equal(t, a, b)
}

func TestFNV1aSeededNulByteSensitivity(t *testing.T) {
	h := FNV1aSeeded{}
	a := h.HashMany([]byte("a\x00b"), 3)
	b := h.HashMany([]byte("ab"), 3)
	require.NotEqual(t, a, b)
}

func TestSHA256BasedDeterministic(t *testing.T) {
	h := SHA256Based{}
	a := h.HashMany([]byte("facebook.com"), 5)
	b := h.HashMany([]byte("facebook.com"), 5)
	require.Equal(t, a, b)
	require.Len(t, a, 5)
}

func TestFamiliesDiffer(t *testing.T) {
	a := FNV1aSeeded{}.HashMany([]byte("x"), 3)
	b := SHA256Based{}.HashMany([]byte("x"), 3)
	require.NotEqual(t, a, b)
}

func TestFromScalarSeededChaining(t *testing.T) {
	calls := 0
	var lastSeed uint64
	adapter := FromScalarSeeded("test", func(key []byte, seed uint64) uint64 {
		calls++
		lastSeed = seed
		return seed + 1
	})
	out := adapter.HashMany([]byte("k"), 3)
	require.Equal(t, 3, calls)
	require.Equal(t, []uint64{fnvOffsetBasis64 + 1, fnvOffsetBasis64 + 2, fnvOffsetBasis64 + 3}, out)
	require.Equal(t, uint64(fnvOffsetBasis64+2), lastSeed)
}

func TestFromScalarBytesPrependsDepthIndex(t *testing.T) {
	var seen [][]byte
	adapter := FromScalarBytes("test", func(key []byte) []byte {
		cp := append([]byte(nil), key...)
		seen = append(seen, cp)
		return []byte{1, 2, 3, 4, 5, 6, 7, 8}
	})
	adapter.HashMany([]byte("key"), 2)
	require.Equal(t, byte(0), seen[0][0])
	require.Equal(t, byte(1), seen[1][0])
	require.Equal(t, []byte("key"), seen[0][1:])
}

func TestXXHash64HasherDeterministic(t *testing.T) {
	a := XXHash64Hasher.HashMany([]byte("a-key"), 4)
	b := XXHash64Hasher.HashMany([]byte("a-key"), 4)
	require.Equal(t, a, b)
}

func TestFarmHasherDeterministic(t *testing.T) {
	a := FarmHasher.HashMany([]byte("a-key"), 4)
	b := FarmHasher.HashMany([]byte("a-key"), 4)
	require.Equal(t, a, b)
}

func TestIdentitiesDiffer(t *testing.T) {
	ids := map[string]bool{}
	for _, h := range []Hasher{FNV1aSeeded{}, SHA256Based{}, XXHash64Hasher, FarmHasher} {
		ids[h.Identity()] = true
	}
	require.Len(t, ids, 4)
}
