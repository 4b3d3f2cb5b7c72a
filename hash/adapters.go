package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	farm "github.com/dgryski/go-farm"
)

// XXHash64Hasher adapts cespare/xxhash's (key, seed) -> u64 shape through
// FromScalarSeeded, giving callers a real alternative to FNV without
// changing any of the depth-chaining semantics.
var XXHash64Hasher Hasher = FromScalarSeeded("xxhash64", func(key []byte, seed uint64) uint64 {
	return xxhash.Sum64(appendSeed(key, seed))
})

// FarmHasher adapts dgryski/go-farm's Fingerprint64, a (key) -> u64 shaped
// function, through FromScalarBytes by treating the 8-byte little-endian
// encoding of the fingerprint as the "bytes" output.
var FarmHasher Hasher = FromScalarBytes("farm-fingerprint64", func(key []byte) []byte {
	fp := farm.Fingerprint64(key)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], fp)
	return b[:]
})

// appendSeed mixes a seed into a key for hash functions, like xxhash.Sum64,
// that don't natively accept one.
func appendSeed(key []byte, seed uint64) []byte {
	out := make([]byte, len(key)+8)
	copy(out, key)
	binary.LittleEndian.PutUint64(out[len(key):], seed)
	return out
}
