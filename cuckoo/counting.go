package cuckoo

import (
	"github.com/dustin/go-humanize"

	"github.com/sketchkit/sketchkit/codec"
	"github.com/sketchkit/sketchkit/errs"
	"github.com/sketchkit/sketchkit/hash"
)

// ccSlot is a single (fingerprint, count) bucket entry for
// CountingCuckooFilter (spec §4.9). An empty slot has fingerprint 0.
type ccSlot struct {
	fp    uint32
	count uint32
}

// CountingCuckooFilter is a CuckooFilter variant where each occupied slot
// additionally counts repeated insertions, so duplicate keys increment a
// counter instead of being ignored, and removal decrements before vacating.
type CountingCuckooFilter struct {
	buckets         [][]ccSlot
	bucketSize      int
	fingerprintSize int
	maxSwaps        int
	expansionRate   float64
	autoExpand      bool
	numElements     uint32
	hasher          hash.Hasher
	rng             rander
}

type rander interface {
	Intn(n int) int
}

func newCCBuckets(numBuckets, bucketSize int) [][]ccSlot {
	b := make([][]ccSlot, numBuckets)
	for i := range b {
		b[i] = make([]ccSlot, bucketSize)
	}
	return b
}

// NewCounting creates a CountingCuckooFilter with explicit parameters,
// mirroring New's signature.
func NewCounting(capacity uint32, bucketSize int, maxSwaps int, expansionRate float64, autoExpand bool, fingerprintSize int, opts ...Option) (*CountingCuckooFilter, error) {
	base, err := New(capacity, bucketSize, maxSwaps, expansionRate, autoExpand, fingerprintSize, opts...)
	if err != nil {
		return nil, err
	}
	return &CountingCuckooFilter{
		buckets:         newCCBuckets(base.NumBuckets(), bucketSize),
		bucketSize:      bucketSize,
		fingerprintSize: fingerprintSize,
		maxSwaps:        maxSwaps,
		expansionRate:   expansionRate,
		autoExpand:      autoExpand,
		hasher:          base.hasher,
		rng:             base.rng,
	}, nil
}

func (f *CountingCuckooFilter) NumBuckets() int     { return len(f.buckets) }
func (f *CountingCuckooFilter) NumElements() uint32 { return f.numElements }

func (f *CountingCuckooFilter) fingerprint(h uint64) uint32 {
	fp := uint32(h) & fingerprintMask(f.fingerprintSize)
	if fp == 0 {
		fp = 1
	}
	return fp
}

// fpCandidates mirrors CuckooFilter.fpCandidates: both candidate buckets
// are derived purely from the fingerprint, so they stay correct across a
// bucket-count change without needing the original key.
func (f *CountingCuckooFilter) fpCandidates(fp uint32) (i1, i2 int) {
	numBuckets := uint64(len(f.buckets))
	hs := hash.FNV1aSeeded{}.HashMany(fingerprintBytes(fp, f.fingerprintSize), 2)
	i1 = int(hs[0] % numBuckets)
	i2 = int(uint64(i1) ^ (hs[1] % numBuckets))
	return i1, i2
}

func (f *CountingCuckooFilter) otherIndex(i int, fp uint32) int {
	numBuckets := uint64(len(f.buckets))
	hs := hash.FNV1aSeeded{}.HashMany(fingerprintBytes(fp, f.fingerprintSize), 2)
	return int(uint64(i) ^ (hs[1] % numBuckets))
}

func (f *CountingCuckooFilter) candidates(key []byte) (fp uint32, i1, i2 int) {
	h := f.hasher.HashMany(key, 1)[0]
	fp = f.fingerprint(h)
	i1, i2 = f.fpCandidates(fp)
	return fp, i1, i2
}

func ccSlotIndexOf(bucket []ccSlot, fp uint32) int {
	for i, s := range bucket {
		if s.fp == fp {
			return i
		}
	}
	return -1
}

func ccEmptySlot(bucket []ccSlot) int {
	return ccSlotIndexOf(bucket, 0)
}

// Check reports whether key's fingerprint occupies a slot in either
// candidate bucket.
func (f *CountingCuckooFilter) Check(key []byte) bool {
	fp, i1, i2 := f.candidates(key)
	return ccSlotIndexOf(f.buckets[i1], fp) != -1 || ccSlotIndexOf(f.buckets[i2], fp) != -1
}

// Count returns key's current count, 0 if absent.
func (f *CountingCuckooFilter) Count(key []byte) uint32 {
	fp, i1, i2 := f.candidates(key)
	if idx := ccSlotIndexOf(f.buckets[i1], fp); idx != -1 {
		return f.buckets[i1][idx].count
	}
	if idx := ccSlotIndexOf(f.buckets[i2], fp); idx != -1 {
		return f.buckets[i2][idx].count
	}
	return 0
}

// Add inserts key, incrementing an existing matching slot's count instead
// of rejecting the duplicate (spec §4.9), otherwise behaving like
// CuckooFilter.Add.
func (f *CountingCuckooFilter) Add(key []byte) error {
	fp, i1, i2 := f.candidates(key)
	if idx := ccSlotIndexOf(f.buckets[i1], fp); idx != -1 {
		f.buckets[i1][idx].count++
		f.numElements++
		return nil
	}
	if idx := ccSlotIndexOf(f.buckets[i2], fp); idx != -1 {
		f.buckets[i2][idx].count++
		f.numElements++
		return nil
	}

	if slot := ccEmptySlot(f.buckets[i1]); slot != -1 {
		f.buckets[i1][slot] = ccSlot{fp: fp, count: 1}
		f.numElements++
		return nil
	}
	if slot := ccEmptySlot(f.buckets[i2]); slot != -1 {
		f.buckets[i2][slot] = ccSlot{fp: fp, count: 1}
		f.numElements++
		return nil
	}

	if f.evict(i1, ccSlot{fp: fp, count: 1}) {
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

// evict performs the same bounded random-walk eviction as CuckooFilter.Add,
// swapping whole (fp, count) pairs together (spec §4.9), and undoing the
// swaps in reverse if max_swaps runs out.
func (f *CountingCuckooFilter) evict(i int, s ccSlot) bool {
	type swap struct{ bucket, slot int }
	path := make([]swap, 0, f.maxSwaps)
	for n := 0; n < f.maxSwaps; n++ {
		slotIdx := f.rng.Intn(f.bucketSize)
		path = append(path, swap{i, slotIdx})
		s, f.buckets[i][slotIdx] = f.buckets[i][slotIdx], s
		i = f.otherIndex(i, s.fp)
		if empty := ccEmptySlot(f.buckets[i]); empty != -1 {
			f.buckets[i][empty] = s
			return true
		}
	}
	for n := len(path) - 1; n >= 0; n-- {
		p := path[n]
		s, f.buckets[p.bucket][p.slot] = f.buckets[p.bucket][p.slot], s
	}
	return false
}

// expand grows the bucket count the same way CuckooFilter.expand does:
// reinsert recomputes each surviving (fp, count) pair's candidate buckets
// from the fingerprint alone, so Check agrees with the new placement after
// a resize (spec §8).
func (f *CountingCuckooFilter) expand() error {
	newCount := nextPowerOfTwo(uint32(float64(len(f.buckets)) * (1 + f.expansionRate)))
	if int(newCount) <= len(f.buckets) {
		newCount = uint32(len(f.buckets)) * 2
	}

	old := f.buckets
	f.buckets = newCCBuckets(int(newCount), f.bucketSize)

	for _, bucket := range old {
		for _, s := range bucket {
			if s.fp == 0 {
				continue
			}
			if !f.reinsert(s) {
				f.buckets = old
				return errs.Init("counting cuckoo: expansion failed to reinsert fingerprint")
			}
		}
	}
	return nil
}

func (f *CountingCuckooFilter) reinsert(s ccSlot) bool {
	i1, i2 := f.fpCandidates(s.fp)
	if slot := ccEmptySlot(f.buckets[i1]); slot != -1 {
		f.buckets[i1][slot] = s
		return true
	}
	if slot := ccEmptySlot(f.buckets[i2]); slot != -1 {
		f.buckets[i2][slot] = s
		return true
	}
	return f.evict(i1, s)
}

// Remove decrements key's count, vacating the slot at zero. Returns true
// if key was present.
func (f *CountingCuckooFilter) Remove(key []byte) bool {
	fp, i1, i2 := f.candidates(key)
	if idx := ccSlotIndexOf(f.buckets[i1], fp); idx != -1 {
		f.buckets[i1][idx].count--
		if f.buckets[i1][idx].count == 0 {
			f.buckets[i1][idx] = ccSlot{}
		}
		f.numElements--
		return true
	}
	if idx := ccSlotIndexOf(f.buckets[i2], fp); idx != -1 {
		f.buckets[i2][idx].count--
		if f.buckets[i2][idx].count == 0 {
			f.buckets[i2][idx] = ccSlot{}
		}
		f.numElements--
		return true
	}
	return false
}

// Stats reports a short human-readable summary.
func (f *CountingCuckooFilter) Stats() string {
	return humanize.Comma(int64(f.numElements)) + " items, " +
		humanize.Comma(int64(len(f.buckets))) + " buckets x " + humanize.Comma(int64(f.bucketSize))
}

// Export serializes the filter per the counting-cuckoo layout (spec §6.6):
// identical header to .cko, with each bucket slot widened to fp bytes plus
// a u32 count.
func (f *CountingCuckooFilter) Export() []byte {
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
		for _, s := range bucket {
			w.PutBytes(fingerprintBytes(s.fp, f.fingerprintSize))
			w.PutUint32(s.count)
		}
	}
	return w.Bytes()
}

// LoadCounting reconstructs a CountingCuckooFilter from exported bytes.
func LoadCounting(data []byte, opts ...Option) (*CountingCuckooFilter, error) {
	r := codec.NewReader(data)
	bucketSize, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("counting cuckoo: reading bucket_size: %v", err)
	}
	maxSwaps, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("counting cuckoo: reading max_swaps: %v", err)
	}
	expansionRate, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("counting cuckoo: reading expansion_rate: %v", err)
	}
	autoExpand32, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("counting cuckoo: reading auto_expand: %v", err)
	}
	fingerprintSize, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("counting cuckoo: reading fingerprint_size: %v", err)
	}
	numBuckets, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("counting cuckoo: reading num_buckets: %v", err)
	}
	numElements, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("counting cuckoo: reading num_elements: %v", err)
	}

	f := &CountingCuckooFilter{
		buckets:         newCCBuckets(int(numBuckets), int(bucketSize)),
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
		var cf CuckooFilter
		opt(&cf)
		if cf.hasher != nil {
			f.hasher = cf.hasher
		}
		if cf.rng != nil {
			f.rng = cf.rng
		}
	}

	for i := range f.buckets {
		for j := range f.buckets[i] {
			b, err := r.Bytes(int(fingerprintSize))
			if err != nil {
				return nil, errs.Persistf("counting cuckoo: reading bucket[%d][%d].fp: %v", i, j, err)
			}
			var fp uint32
			for k, byteVal := range b {
				fp |= uint32(byteVal) << (8 * k)
			}
			count, err := r.Uint32()
			if err != nil {
				return nil, errs.Persistf("counting cuckoo: reading bucket[%d][%d].count: %v", i, j, err)
			}
			f.buckets[i][j] = ccSlot{fp: fp, count: count}
		}
	}
	return f, nil
}
