// Package cuckoo implements CuckooFilter and CountingCuckooFilter. The
// teacher module has no cuckoo precedent, so the bucket/fingerprint/eviction
// shape is grounded on the reference cuckoo filter implementations surveyed
// from the wider example pack (notably the BoomFilters-derived cuckoo.go),
// rebuilt around this module's hash.Hasher and codec contracts.
package cuckoo

import (
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sketchkit/sketchkit/codec"
	"github.com/sketchkit/sketchkit/errs"
	"github.com/sketchkit/sketchkit/hash"
)

// defaultRNG backs eviction randomness when a filter isn't constructed
// with WithRand; seeded once from wall-clock time rather than per-filter,
// matching the non-deterministic default an unseeded filter should have.
var defaultRNG = rand.New(rand.NewSource(time.Now().UnixNano()))

// BucketSize enumerates the supported fingerprints-per-bucket counts.
type BucketSize int

const (
	Bucket1 BucketSize = 1
	Bucket2 BucketSize = 2
	Bucket4 BucketSize = 4
	Bucket8 BucketSize = 8
)

func validBucketSize(b int) bool {
	switch b {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// CuckooFilter is an approximate-membership structure supporting deletion,
// built from a fixed number of buckets each holding up to bucket_size
// fingerprints (spec §4.8).
type CuckooFilter struct {
	buckets         [][]uint32
	bucketSize      int
	fingerprintSize int
	maxSwaps        int
	expansionRate   float64
	autoExpand      bool
	numElements     uint32
	hasher          hash.Hasher
	rng             *rand.Rand
}

// Option configures a CuckooFilter at construction time.
type Option func(*CuckooFilter)

// WithHasher overrides the default FNV-1a-seeded hasher.
func WithHasher(h hash.Hasher) Option {
	return func(f *CuckooFilter) { f.hasher = h }
}

// WithRand supplies a seedable source of randomness for eviction, so
// eviction chains are reproducible in tests (spec §9 Open Question).
func WithRand(r *rand.Rand) Option {
	return func(f *CuckooFilter) { f.rng = r }
}

func nextPowerOfTwo(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func newBuckets(numBuckets, bucketSize int) [][]uint32 {
	b := make([][]uint32, numBuckets)
	for i := range b {
		b[i] = make([]uint32, bucketSize)
	}
	return b
}

// New creates a CuckooFilter with explicit parameters.
func New(capacity uint32, bucketSize int, maxSwaps int, expansionRate float64, autoExpand bool, fingerprintSize int, opts ...Option) (*CuckooFilter, error) {
	if !validBucketSize(bucketSize) {
		return nil, errs.Init("bucket_size must be one of {1,2,4,8}")
	}
	if fingerprintSize < 1 || fingerprintSize > 4 {
		return nil, errs.Init("fingerprint_size must be in [1,4]")
	}
	if maxSwaps <= 0 {
		return nil, errs.Init("max_swaps must be > 0")
	}
	numBuckets := nextPowerOfTwo(uint32((int(capacity) + bucketSize - 1) / bucketSize))

	f := &CuckooFilter{
		buckets:         newBuckets(int(numBuckets), bucketSize),
		bucketSize:      bucketSize,
		fingerprintSize: fingerprintSize,
		maxSwaps:        maxSwaps,
		expansionRate:   expansionRate,
		autoExpand:      autoExpand,
		hasher:          hash.FNV1aSeeded{},
		rng:             defaultRNG,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *CuckooFilter) NumBuckets() int     { return len(f.buckets) }
func (f *CuckooFilter) BucketSize() int     { return f.bucketSize }
func (f *CuckooFilter) NumElements() uint32 { return f.numElements }

func fingerprintMask(fingerprintSize int) uint32 {
	return uint32(1)<<(8*uint(fingerprintSize)) - 1
}

// fingerprint derives a non-zero fp from a 64-bit hash: fp = max(1, h mod
// 2^(8*fingerprint_size)). 0 is reserved for empty slots.
func (f *CuckooFilter) fingerprint(h uint64) uint32 {
	fp := uint32(h) & fingerprintMask(f.fingerprintSize)
	if fp == 0 {
		fp = 1
	}
	return fp
}

func fingerprintBytes(fp uint32, fingerprintSize int) []byte {
	b := make([]byte, fingerprintSize)
	for i := 0; i < fingerprintSize; i++ {
		b[i] = byte(fp >> (8 * i))
	}
	return b
}

// candidates returns a key's fingerprint and its two candidate buckets.
// Both i1 and i2 are derived purely from the fingerprint (fpCandidates),
// not from the key's hash, so they can be recomputed identically against
// any bucket count — the property partial-key cuckoo resize depends on
// (spec §4.8).
func (f *CuckooFilter) candidates(key []byte) (fp uint32, i1, i2 int) {
	h := f.hasher.HashMany(key, 1)[0]
	fp = f.fingerprint(h)
	i1, i2 = f.fpCandidates(fp)
	return fp, i1, i2
}

// fpCandidates derives a fingerprint's pair of candidate buckets from two
// independent hashes of the fingerprint bytes alone. Because neither value
// depends on the original key or on a previously-computed bucket index,
// Check and reinsert-after-expand always agree on the same bucket set for
// a given fingerprint, at whatever bucket count is current.
func (f *CuckooFilter) fpCandidates(fp uint32) (i1, i2 int) {
	numBuckets := uint64(len(f.buckets))
	hs := hash.FNV1aSeeded{}.HashMany(fingerprintBytes(fp, f.fingerprintSize), 2)
	i1 = int(hs[0] % numBuckets)
	i2 = int(uint64(i1) ^ (hs[1] % numBuckets))
	return i1, i2
}

// otherIndex returns fp's other candidate bucket given one of them; it is
// its own inverse since both candidates are defined symmetrically via XOR.
func (f *CuckooFilter) otherIndex(i int, fp uint32) int {
	numBuckets := uint64(len(f.buckets))
	hs := hash.FNV1aSeeded{}.HashMany(fingerprintBytes(fp, f.fingerprintSize), 2)
	return int(uint64(i) ^ (hs[1] % numBuckets))
}

func bucketIndexOf(bucket []uint32, fp uint32) int {
	for i, v := range bucket {
		if v == fp {
			return i
		}
	}
	return -1
}

func bucketEmptySlot(bucket []uint32) int {
	return bucketIndexOf(bucket, 0)
}

// Check reports whether key's fingerprint is present in either candidate
// bucket.
func (f *CuckooFilter) Check(key []byte) bool {
	fp, i1, i2 := f.candidates(key)
	return bucketIndexOf(f.buckets[i1], fp) != -1 || bucketIndexOf(f.buckets[i2], fp) != -1
}

// Add inserts key, relocating existing fingerprints via bounded random
// eviction when both candidate buckets are full, expanding the table if
// auto_expand is set and eviction exhausts max_swaps (spec §4.8).
func (f *CuckooFilter) Add(key []byte) error {
	fp, i1, i2 := f.candidates(key)
	if bucketIndexOf(f.buckets[i1], fp) != -1 || bucketIndexOf(f.buckets[i2], fp) != -1 {
		// Single-insert policy: a key already present is a no-op, not an
		// error (spec §8).
		return nil
	}

	if slot := bucketEmptySlot(f.buckets[i1]); slot != -1 {
		f.buckets[i1][slot] = fp
		f.numElements++
		return nil
	}
	if slot := bucketEmptySlot(f.buckets[i2]); slot != -1 {
		f.buckets[i2][slot] = fp
		f.numElements++
		return nil
	}

	if f.evict(i1, fp) {
		f.numElements++
		return nil
	}

	if f.autoExpand {
		if err := f.expand(); err != nil {
			return err
		}
		return f.Add(key)
	}
	return errs.ErrCuckooFull
}

// evict performs bounded random-walk eviction starting from bucket i,
// attempting to place fp by repeatedly swapping it with a random occupied
// slot and rehoming the displaced fingerprint to its other candidate
// bucket, up to max_swaps times. If max_swaps runs out, the swaps are undone
// in reverse so the table is left as it was.
func (f *CuckooFilter) evict(i int, fp uint32) bool {
	type swap struct{ bucket, slot int }
	path := make([]swap, 0, f.maxSwaps)
	for n := 0; n < f.maxSwaps; n++ {
		slot := f.rng.Intn(f.bucketSize)
		path = append(path, swap{i, slot})
		fp, f.buckets[i][slot] = f.buckets[i][slot], fp
		i = f.otherIndex(i, fp)
		if empty := bucketEmptySlot(f.buckets[i]); empty != -1 {
			f.buckets[i][empty] = fp
			return true
		}
	}
	for n := len(path) - 1; n >= 0; n-- {
		s := path[n]
		fp, f.buckets[s.bucket][s.slot] = f.buckets[s.bucket][s.slot], fp
	}
	return false
}

// expand doubles (times 1+expansion_rate, rounded up to a power of two) the
// bucket count and reinserts every fingerprint without rehashing the
// original keys — reinsert re-derives each fingerprint's candidate buckets
// against the new count via fpCandidates, the same computation Check will
// use, so every key findable before expand() remains findable after (spec
// §8). The expansion is rolled back if any reinsertion fails.
func (f *CuckooFilter) expand() error {
	newCount := nextPowerOfTwo(uint32(float64(len(f.buckets)) * (1 + f.expansionRate)))
	if int(newCount) <= len(f.buckets) {
		newCount = uint32(len(f.buckets)) * 2
	}

	old := f.buckets
	f.buckets = newBuckets(int(newCount), f.bucketSize)

	for _, bucket := range old {
		for _, fp := range bucket {
			if fp == 0 {
				continue
			}
			if !f.reinsert(fp) {
				f.buckets = old
				return errs.Init("cuckoo: expansion failed to reinsert fingerprint")
			}
		}
	}
	return nil
}

// reinsert places a surviving fingerprint during expand() by recomputing
// its candidate buckets from scratch (fpCandidates), never from the
// fingerprint's position in the old, smaller table.
func (f *CuckooFilter) reinsert(fp uint32) bool {
	i1, i2 := f.fpCandidates(fp)
	if slot := bucketEmptySlot(f.buckets[i1]); slot != -1 {
		f.buckets[i1][slot] = fp
		return true
	}
	if slot := bucketEmptySlot(f.buckets[i2]); slot != -1 {
		f.buckets[i2][slot] = fp
		return true
	}
	return f.evict(i1, fp)
}

// Remove clears one matching fingerprint slot for key, if present.
func (f *CuckooFilter) Remove(key []byte) bool {
	fp, i1, i2 := f.candidates(key)
	if idx := bucketIndexOf(f.buckets[i1], fp); idx != -1 {
		f.buckets[i1][idx] = 0
		f.numElements--
		return true
	}
	if idx := bucketIndexOf(f.buckets[i2], fp); idx != -1 {
		f.buckets[i2][idx] = 0
		f.numElements--
		return true
	}
	return false
}

// Stats reports a short human-readable summary.
func (f *CuckooFilter) Stats() string {
	return humanize.Comma(int64(f.numElements)) + " items, " +
		humanize.Comma(int64(len(f.buckets))) + " buckets x " + humanize.Comma(int64(f.bucketSize))
}

// Export serializes the filter per the .cko layout (spec §6.5).
func (f *CuckooFilter) Export() []byte {
	w := codec.NewWriter(0)
	w.PutUint32(uint32(f.bucketSize))
	w.PutUint32(uint32(f.maxSwaps))
	w.PutUint32(math32(f.expansionRate))
	if f.autoExpand {
		w.PutUint32(1)
	} else {
		w.PutUint32(0)
	}
	w.PutUint32(uint32(f.fingerprintSize))
	w.PutUint32(uint32(len(f.buckets)))
	w.PutUint32(f.numElements)
	for _, bucket := range f.buckets {
		for _, fp := range bucket {
			w.PutBytes(fingerprintBytes(fp, f.fingerprintSize))
		}
	}
	return w.Bytes()
}

func math32(v float64) uint32   { return uint32(v * 1e6) }
func unmath32(v uint32) float64 { return float64(v) / 1e6 }

// Load reconstructs a CuckooFilter from exported bytes.
func Load(data []byte, opts ...Option) (*CuckooFilter, error) {
	r := codec.NewReader(data)
	bucketSize, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("cuckoo: reading bucket_size: %v", err)
	}
	maxSwaps, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("cuckoo: reading max_swaps: %v", err)
	}
	expansionRate, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("cuckoo: reading expansion_rate: %v", err)
	}
	autoExpand32, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("cuckoo: reading auto_expand: %v", err)
	}
	fingerprintSize, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("cuckoo: reading fingerprint_size: %v", err)
	}
	numBuckets, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("cuckoo: reading num_buckets: %v", err)
	}
	numElements, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("cuckoo: reading num_elements: %v", err)
	}

	f := &CuckooFilter{
		buckets:         newBuckets(int(numBuckets), int(bucketSize)),
		bucketSize:      int(bucketSize),
		fingerprintSize: int(fingerprintSize),
		maxSwaps:        int(maxSwaps),
		expansionRate:   unmath32(expansionRate),
		autoExpand:      autoExpand32 != 0,
		numElements:     numElements,
		hasher:          hash.FNV1aSeeded{},
		rng:             defaultRNG,
	}
	for _, opt := range opts {
		opt(f)
	}

	for i := range f.buckets {
		for j := range f.buckets[i] {
			b, err := r.Bytes(int(fingerprintSize))
			if err != nil {
				return nil, errs.Persistf("cuckoo: reading bucket[%d][%d]: %v", i, j, err)
			}
			var fp uint32
			for k, byteVal := range b {
				fp |= uint32(byteVal) << (8 * k)
			}
			f.buckets[i][j] = fp
		}
	}
	return f, nil
}
