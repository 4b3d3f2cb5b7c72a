// Package bloom implements the classical Bloom filter and its
// Counting/Expanding/Rotating variants (spec §4.2-§4.4), plus the binary
// serialization contract in spec §6.
//
// Grounded on the teacher's admission-filter, filter.go, whose fnv-based
// bit indexing and Set/Has shape this package generalizes to an arbitrary
// Hasher, an explicit k, union/intersection/jaccard, and the on-disk
// footer format.
package bloom

import (
	"math"

	"github.com/dustin/go-humanize"

	"github.com/sketchkit/sketchkit/bitset"
	"github.com/sketchkit/sketchkit/codec"
	"github.com/sketchkit/sketchkit/errs"
	"github.com/sketchkit/sketchkit/hash"
)

// ln2Squared is (ln 2)^2, used in the m = ceil(-n*ln(p)/(ln2)^2) formula.
var ln2 = math.Log(2)
var ln2Squared = ln2 * ln2

// deriveMK computes the classical Bloom parameters from (estimated
// elements, target false-positive rate), per spec §3: m = ceil(-n*ln(p) /
// (ln2)^2), k = ceil((m/n)*ln2), both clamped to >= 1.
func deriveMK(nEst uint64, p float64) (m uint64, k int) {
	n := float64(nEst)
	mf := math.Ceil(-n * math.Log(p) / ln2Squared)
	if mf < 1 {
		mf = 1
	}
	m = uint64(mf)
	kf := math.Ceil((mf / n) * ln2)
	k = int(kf)
	if k < 1 {
		k = 1
	}
	return m, k
}

// Filter is the classical Bloom filter: an m-bit array, k hash functions,
// a target false-positive rate p, an estimated-element capacity, and an
// elements-added counter.
type Filter struct {
	m      uint64
	k      int
	p      float64
	nEst   uint64
	nIns   uint64
	hasher hash.Hasher
	bits   *bitset.BitSet
}

// Option configures a Filter at construction time.
type Option func(*Filter)

// WithHasher overrides the default FNV1aSeeded hash family.
func WithHasher(h hash.Hasher) Option {
	return func(f *Filter) { f.hasher = h }
}

// New is the error-rate constructor: given the number of elements expected
// to be added and the target false-positive rate, it derives m and k by
// the classical formulas.
func New(estimatedElements uint64, falsePositiveRate float64, opts ...Option) (*Filter, error) {
	if estimatedElements == 0 {
		return nil, errs.Init("estimated elements must be > 0")
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		return nil, errs.Init("false positive rate must be in (0, 1)")
	}
	m, k := deriveMK(estimatedElements, falsePositiveRate)
	return newWithMK(m, k, estimatedElements, falsePositiveRate, opts...)
}

// NewWithParams is the parameter constructor: m and k are supplied
// directly rather than derived, for callers who already know the shape
// they want (e.g. to match an existing filter for union/intersection).
func NewWithParams(m uint64, k int, estimatedElements uint64, falsePositiveRate float64, opts ...Option) (*Filter, error) {
	if m == 0 {
		return nil, errs.Init("m must be > 0")
	}
	if k < 1 {
		return nil, errs.Init("k must be >= 1")
	}
	return newWithMK(m, k, estimatedElements, falsePositiveRate, opts...)
}

func newWithMK(m uint64, k int, nEst uint64, p float64, opts ...Option) (*Filter, error) {
	f := &Filter{
		m:      m,
		k:      k,
		p:      p,
		nEst:   nEst,
		hasher: hash.FNV1aSeeded{},
		bits:   bitset.New(m),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// M returns the bit array length.
func (f *Filter) M() uint64 { return f.m }

// K returns the number of hash functions.
func (f *Filter) K() int { return f.k }

// NIns returns the elements-added counter.
func (f *Filter) NIns() uint64 { return f.nIns }

// NEst returns the estimated-element capacity this filter was sized for.
func (f *Filter) NEst() uint64 { return f.nEst }

// FPR returns the target false-positive rate this filter was sized for.
func (f *Filter) FPR() float64 { return f.p }

// HashVector computes the k-or-more-length hash vector for a key.
func (f *Filter) HashVector(key []byte) []uint64 {
	depth := f.k
	return f.hasher.HashMany(key, depth)
}

// Add sets the bit at h_i mod m for each of the k hashes of key, and
// unconditionally increments n_ins. Returns the post-increment n_ins.
func (f *Filter) Add(key []byte) uint64 {
	return f.AddAlt(f.HashVector(key))
}

// AddAlt is Add taking a precomputed hash vector (length >= k).
func (f *Filter) AddAlt(hashes []uint64) uint64 {
	for i := 0; i < f.k; i++ {
		f.bits.Set(hashes[i] % f.m)
	}
	f.nIns++
	return f.nIns
}

// Check reports whether all k bits for key are set.
func (f *Filter) Check(key []byte) bool {
	return f.CheckAlt(f.HashVector(key))
}

// CheckAlt is Check taking a precomputed hash vector (length >= k).
func (f *Filter) CheckAlt(hashes []uint64) bool {
	for i := 0; i < f.k; i++ {
		if !f.bits.Get(hashes[i] % f.m) {
			return false
		}
	}
	return true
}

// sameShape reports whether f and other can be combined by
// union/intersection: identical m, k, and hasher identity.
func (f *Filter) sameShape(other *Filter) error {
	if f.m != other.m || f.k != other.k {
		return errs.Init("union/intersection require identical m and k")
	}
	if f.hasher.Identity() != other.hasher.Identity() {
		return errs.Init("union/intersection require identical hash_identity")
	}
	return nil
}

// Union sets f to the bitwise OR of f and other, and sets n_ins to
// min(f.n_ins + other.n_ins, n_est). f and other must share (m, k,
// hash_identity) or an InitializationError is returned.
func (f *Filter) Union(other *Filter) error {
	if err := f.sameShape(other); err != nil {
		return err
	}
	f.bits.Union(other.bits)
	sum := f.nIns + other.nIns
	if sum > f.nEst {
		sum = f.nEst
	}
	f.nIns = sum
	return nil
}

// Intersection sets f to the bitwise AND of f and other, and sets n_ins to
// min(f.n_ins, other.n_ins).
func (f *Filter) Intersection(other *Filter) error {
	if err := f.sameShape(other); err != nil {
		return err
	}
	f.bits.Intersect(other.bits)
	if other.nIns < f.nIns {
		f.nIns = other.nIns
	}
	return nil
}

// JaccardIndex returns |A intersect B| / |A union B| computed via
// popcounts. Returns 1.0 when both filters are empty.
func (f *Filter) JaccardIndex(other *Filter) (float64, error) {
	if err := f.sameShape(other); err != nil {
		return 0, err
	}
	union := f.bits.UnionPopcount(other.bits)
	if union == 0 {
		return 1.0, nil
	}
	inter := f.bits.IntersectionPopcount(other.bits)
	return float64(inter) / float64(union), nil
}

// EstimateElements estimates the number of distinct keys added, via
// -(m/k)*ln(1 - X/m) where X is the set bit count. When X == m (fully
// saturated), it falls back to n_ins to avoid a domain error in ln(0).
func (f *Filter) EstimateElements() uint64 {
	x := f.bits.Popcount()
	if x >= f.m {
		return f.nIns
	}
	m := float64(f.m)
	k := float64(f.k)
	est := -(m / k) * math.Log(1-float64(x)/m)
	if est < 0 {
		est = 0
	}
	return uint64(math.Round(est))
}

// CurrentFalsePositiveRate returns (1 - (1 - 1/m)^(k*n_ins))^k, the
// filter's current estimated false-positive rate given its fill level.
func (f *Filter) CurrentFalsePositiveRate() float64 {
	m := float64(f.m)
	k := float64(f.k)
	n := float64(f.nIns)
	inner := math.Pow(1-1/m, k*n)
	return math.Pow(1-inner, k)
}

// Stats reports a human-readable summary of this filter's size and fill,
// using dustin/go-humanize for the byte count, matching the teacher's own
// use of humanize for structure-size reporting.
func (f *Filter) Stats() string {
	bytes := (f.m + 7) / 8
	return "bloom filter: " + humanize.IBytes(bytes) +
		", k=" + itoa(f.k) +
		", n_ins=" + humanize.Comma(int64(f.nIns))
}

func itoa(n int) string {
	return humanize.Comma(int64(n))
}

// footerSize is the byte size of the export footer: est_elements (u64) +
// fpr (f32) + n_ins (u64), per spec §6.1.
const footerSize = 8 + 4 + 8

// Export encodes f as the standard .blm bytes: the bit array followed by
// the footer (est_elements, fpr, n_ins). Total length is
// ceil(m/8) + 20.
func (f *Filter) Export() []byte {
	w := codec.NewWriter(len(f.bits.Bytes()) + footerSize)
	w.PutBytes(f.bits.Bytes())
	w.PutUint64(f.nEst)
	w.PutFloat32(float32(f.p))
	w.PutUint64(f.nIns)
	return w.Bytes()
}

// ExportToHex returns the uppercase hex encoding of Export(), with no
// separators.
func (f *Filter) ExportToHex() string {
	return codec.ToHex(f.Export())
}

// ExportCHeader renders a C header: a const unsigned char array literal
// plus #define macros for EST_ELEMENTS, FPR, and ELEMENTS_ADDED (spec §6.1).
func (f *Filter) ExportCHeader(varName string) string {
	return codec.CHeader(varName, f.Export(), map[string]uint64{
		"EST_ELEMENTS":   f.nEst,
		"ELEMENTS_ADDED": f.nIns,
	}, map[string]float64{
		"FPR": f.p,
	})
}

// Load reconstructs a Filter from exported bytes (spec §6.8: load_bytes
// and load_path must behave identically; Load is the shared core both
// call). (m, k) are reconstructed from (est_elements, fpr) via the same
// derivation formulas used at construction, and the bit array length is
// verified against that reconstruction.
func Load(data []byte, opts ...Option) (*Filter, error) {
	if len(data) < footerSize {
		return nil, errs.Persistf("file too short: %d bytes, need at least %d", len(data), footerSize)
	}
	bitLen := len(data) - footerSize
	r := codec.NewReader(data[bitLen:])
	nEst, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	p32, err := r.Float32()
	if err != nil {
		return nil, err
	}
	nIns, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	p := float64(p32)
	if nEst == 0 || p <= 0 || p >= 1 {
		return nil, errs.Persistf("corrupt footer: est_elements=%d fpr=%v", nEst, p)
	}
	m, k := deriveMK(nEst, p)
	wantBytes := int((m + 7) / 8)
	if wantBytes != bitLen {
		return nil, errs.Persistf("bit array length mismatch: file has %d bytes, (n_est=%d, fpr=%v) implies %d", bitLen, nEst, p, wantBytes)
	}
	f, err := newWithMK(m, k, nEst, p, opts...)
	if err != nil {
		return nil, err
	}
	copy(f.bits.Bytes(), data[:bitLen])
	f.nIns = nIns
	return f, nil
}

// LoadFromHex decodes a hex string produced by ExportToHex and loads it.
func LoadFromHex(s string, opts ...Option) (*Filter, error) {
	data, err := codec.FromHex(s)
	if err != nil {
		return nil, err
	}
	return Load(data, opts...)
}
