package bloom

import (
	"encoding/binary"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/sketchkit/sketchkit/bloom/diskbloom"
	"github.com/sketchkit/sketchkit/errs"
	"github.com/sketchkit/sketchkit/hash"
)

// OnDiskBloomFilter is a classical Filter whose bit array lives in a
// diskbloom.Backend instead of process memory, so m can exceed available
// RAM (spec §4.11). It exposes the same Add/Check surface as Filter; n_ins
// is tracked in memory and persisted into the backend's footer region on
// Flush, mirroring the in-memory Filter.Export footer layout (§6.2).
type OnDiskBloomFilter struct {
	m       uint64
	k       int
	p       float64
	nEst    uint64
	nIns    uint64
	hasher  hash.Hasher
	backend diskbloom.Backend
}

// BackendBits returns the number of bits a Backend must be sized for to
// back an on-disk filter with the given parameters: the m data bits plus
// the footerSize-byte footer region appended after them.
func BackendBits(estimatedElements uint64, falsePositiveRate float64) uint64 {
	m, _ := deriveMK(estimatedElements, falsePositiveRate)
	return m + footerSize*8
}

// NewOnDisk derives (m, k) the same way New does, for a fresh, empty
// backend (n_ins starts at 0). backend must already be sized to hold at
// least BackendBits(estimatedElements, falsePositiveRate) bits (see
// OpenMmap). To reopen a backend previously written by Flush, use
// OpenOnDisk instead, which restores n_ins from the persisted footer.
func NewOnDisk(estimatedElements uint64, falsePositiveRate float64, backend diskbloom.Backend, opts ...Option) (*OnDiskBloomFilter, error) {
	if estimatedElements == 0 {
		return nil, errs.Init("estimated_elements must be > 0")
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		return nil, errs.Init("false_positive_rate must be in (0, 1)")
	}
	m, k := deriveMK(estimatedElements, falsePositiveRate)

	f := &Filter{m: m, k: k, p: falsePositiveRate, nEst: estimatedElements, hasher: hash.FNV1aSeeded{}}
	for _, opt := range opts {
		opt(f)
	}

	return &OnDiskBloomFilter{
		m: m, k: k, p: falsePositiveRate, nEst: estimatedElements,
		hasher: f.hasher, backend: backend,
	}, nil
}

// OpenOnDisk reopens a backend previously written by Flush, restoring
// n_ins from the persisted footer instead of starting fresh at 0 (spec
// §3 Lifecycle's deserializer case, applied to the on-disk backend rather
// than an in-memory byte slice).
func OpenOnDisk(estimatedElements uint64, falsePositiveRate float64, backend diskbloom.Backend, opts ...Option) (*OnDiskBloomFilter, error) {
	f, err := NewOnDisk(estimatedElements, falsePositiveRate, backend, opts...)
	if err != nil {
		return nil, err
	}
	_, _, nIns := f.readFooter()
	f.nIns = nIns
	return f, nil
}

func (f *OnDiskBloomFilter) M() uint64    { return f.m }
func (f *OnDiskBloomFilter) K() int       { return f.k }
func (f *OnDiskBloomFilter) NIns() uint64 { return f.nIns }

func (f *OnDiskBloomFilter) HashVector(key []byte) []uint64 {
	return f.hasher.HashMany(key, f.k)
}

// Add sets the k bits for key and returns the post-insertion n_ins.
func (f *OnDiskBloomFilter) Add(key []byte) uint64 {
	for _, h := range f.HashVector(key) {
		f.backend.SetBit(h % f.m)
	}
	f.nIns++
	return f.nIns
}

// Check reports whether all k bits for key are set.
func (f *OnDiskBloomFilter) Check(key []byte) bool {
	for _, h := range f.HashVector(key) {
		if !f.backend.GetBit(h % f.m) {
			return false
		}
	}
	return true
}

// dataPopcount counts set bits over just the filter's own m-bit data
// region, excluding the footer bits Flush appends past it — unlike
// f.backend.Popcount(), which (once Flush has run) also counts the
// footer, inflating the estimate below.
func (f *OnDiskBloomFilter) dataPopcount() uint64 {
	var n uint64
	for i := uint64(0); i < f.m; i++ {
		if f.backend.GetBit(i) {
			n++
		}
	}
	return n
}

// EstimateElements mirrors Filter's in-memory estimator, but counts only
// the data bits (dataPopcount), not the backend's footer region.
func (f *OnDiskBloomFilter) EstimateElements() uint64 {
	x := f.dataPopcount()
	if x >= f.m {
		return f.nIns
	}
	estimate := -1.0 * (float64(f.m) / float64(f.k)) * math.Log(1.0-float64(x)/float64(f.m))
	return uint64(math.Round(estimate))
}

func (f *OnDiskBloomFilter) footerBase() uint64 {
	return ((f.m + 7) / 8) * 8
}

// Flush persists n_ins into the backend's footer bytes (immediately past
// the ceil(m/8) bit region) and forces the backend to stable storage.
// Every footer bit is explicitly set or cleared (not just OR'd in), so a
// Flush after n_ins's bit pattern loses a 1 somewhere still persists
// correctly instead of leaving stale bits from a prior Flush.
func (f *OnDiskBloomFilter) Flush() error {
	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(footer[0:8], f.nEst)
	binary.LittleEndian.PutUint32(footer[8:12], math.Float32bits(float32(f.p)))
	binary.LittleEndian.PutUint64(footer[12:20], f.nIns)

	base := f.footerBase()
	for i, b := range footer {
		idx := base + uint64(i*8)
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				f.backend.SetBit(idx + uint64(bit))
			} else {
				f.backend.ClearBit(idx + uint64(bit))
			}
		}
	}
	return f.backend.Flush()
}

// readFooter reconstructs (n_est, p, n_ins) from the footer bits a prior
// Flush wrote, the inverse of Flush's bit-by-bit encoding.
func (f *OnDiskBloomFilter) readFooter() (nEst uint64, p float64, nIns uint64) {
	base := f.footerBase()
	footer := make([]byte, footerSize)
	for i := range footer {
		var b byte
		for bit := 0; bit < 8; bit++ {
			if f.backend.GetBit(base + uint64(i*8+bit)) {
				b |= 1 << bit
			}
		}
		footer[i] = b
	}
	nEst = binary.LittleEndian.Uint64(footer[0:8])
	p = float64(math.Float32frombits(binary.LittleEndian.Uint32(footer[8:12])))
	nIns = binary.LittleEndian.Uint64(footer[12:20])
	return nEst, p, nIns
}

// Close releases the backend.
func (f *OnDiskBloomFilter) Close() error {
	return f.backend.Close()
}

// Stats reports a short human-readable summary, mirroring Filter.Stats.
func (f *OnDiskBloomFilter) Stats() string {
	return humanize.Comma(int64(f.nIns)) + " items, " +
		humanize.IBytes((f.m+7)/8) + " bit array, k=" + humanize.Comma(int64(f.k))
}
