// Package countmin implements CountMinSketch and the structures built on
// top of it (HeavyHitters, StreamThreshold).
package countmin

import (
	"math"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/sketchkit/sketchkit/codec"
	"github.com/sketchkit/sketchkit/errs"
	"github.com/sketchkit/sketchkit/hash"
)

// Policy selects how CountMinSketch.Query combines a key's depth cells
// into a single estimate.
type Policy int

const (
	// MIN takes the minimum of the depth cells, the textbook estimator.
	MIN Policy = iota
	// MEAN takes the arithmetic mean, integer-truncated.
	MEAN
	// MEANMIN takes the median of noise-corrected cell values, trading
	// some variance for resistance to a single saturated row.
	MEANMIN
)

// CountMinSketch is a depth x width matrix of saturating i32 counters
// approximating per-key frequency, grounded on the teacher's internal
// cmSketch (root sketch.go) and generalized from its fixed 4-bit counters
// to a dense i32 matrix with a selectable query policy.
type CountMinSketch struct {
	depth  int
	width  int
	policy Policy
	hasher hash.Hasher
	n      int64
	matrix [][]int32
}

// Option configures a CountMinSketch at construction time.
type Option func(*CountMinSketch)

// WithHasher overrides the default FNV-1a-seeded hasher.
func WithHasher(h hash.Hasher) Option {
	return func(s *CountMinSketch) { s.hasher = h }
}

// WithPolicy overrides the default MIN query policy.
func WithPolicy(p Policy) Option {
	return func(s *CountMinSketch) { s.policy = p }
}

func newMatrix(depth, width int) [][]int32 {
	m := make([][]int32, depth)
	for i := range m {
		m[i] = make([]int32, width)
	}
	return m
}

func validPolicy(p Policy) bool {
	switch p {
	case MIN, MEAN, MEANMIN:
		return true
	}
	return false
}

// New creates a CountMinSketch with explicit (depth, width).
func New(depth, width int, opts ...Option) (*CountMinSketch, error) {
	if depth <= 0 || width <= 0 {
		return nil, errs.Init("depth and width must be > 0")
	}
	s := &CountMinSketch{
		depth:  depth,
		width:  width,
		policy: MIN,
		hasher: hash.FNV1aSeeded{},
		matrix: newMatrix(depth, width),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !validPolicy(s.policy) {
		return nil, errs.CountMinPolicyf("unrecognized policy tag %d", s.policy)
	}
	return s, nil
}

// NewWithRate derives (depth, width) from a target (confidence,
// error_rate) via the standard formulas: width = ceil(e/error_rate),
// depth = ceil(ln(1/(1-confidence))).
func NewWithRate(confidence, errorRate float64, opts ...Option) (*CountMinSketch, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, errs.Init("confidence must be in (0, 1)")
	}
	if errorRate <= 0 || errorRate >= 1 {
		return nil, errs.Init("error_rate must be in (0, 1)")
	}
	width := int(math.Ceil(math.E / errorRate))
	depth := int(math.Ceil(math.Log(1 / (1 - confidence))))
	if width < 1 {
		width = 1
	}
	if depth < 1 {
		depth = 1
	}
	return New(depth, width, opts...)
}

func (s *CountMinSketch) Depth() int     { return s.depth }
func (s *CountMinSketch) Width() int     { return s.width }
func (s *CountMinSketch) N() int64       { return s.n }
func (s *CountMinSketch) Policy() Policy { return s.policy }

func (s *CountMinSketch) cellIndexes(key []byte) []int {
	hashes := s.hasher.HashMany(key, s.depth)
	idx := make([]int, s.depth)
	for i, h := range hashes {
		idx[i] = int(h % uint64(s.width))
	}
	return idx
}

func addClamped(c int32, x int64) int32 {
	sum := int64(c) + x
	if sum > math.MaxInt32 {
		return math.MaxInt32
	}
	if sum < math.MinInt32 {
		return math.MinInt32
	}
	return int32(sum)
}

// Add increments key's depth cells by x (default 1 via AddOne) with
// clamping to the i32 range, and returns the post-update estimate.
func (s *CountMinSketch) Add(key []byte, x int64) int64 {
	for i, c := range s.cellIndexes(key) {
		s.matrix[i][c] = addClamped(s.matrix[i][c], x)
	}
	s.n += x
	return s.Query(key)
}

// AddOne is the common case Add(key, 1).
func (s *CountMinSketch) AddOne(key []byte) int64 { return s.Add(key, 1) }

// Remove is Add(key, -x).
func (s *CountMinSketch) Remove(key []byte, x int64) int64 {
	return s.Add(key, -x)
}

// Query estimates key's frequency under the sketch's configured policy.
func (s *CountMinSketch) Query(key []byte) int64 {
	idx := s.cellIndexes(key)
	switch s.policy {
	case MEAN:
		var sum int64
		for i, c := range idx {
			sum += int64(s.matrix[i][c])
		}
		return sum / int64(s.depth)
	case MEANMIN:
		return s.queryMeanMin(idx)
	default:
		min := int64(s.matrix[0][idx[0]])
		for i := 1; i < s.depth; i++ {
			if v := int64(s.matrix[i][idx[i]]); v < min {
				min = v
			}
		}
		return min
	}
}

// queryMeanMin implements the MEAN_MIN policy: for each cell c_i, the
// noise estimate is (n - c_i) / (width - 1); the result is the median of
// c_i - noise_i across the depth rows.
func (s *CountMinSketch) queryMeanMin(idx []int) int64 {
	denom := int64(s.width - 1)
	if denom <= 0 {
		denom = 1
	}
	corrected := make([]int64, s.depth)
	for i, c := range idx {
		ci := int64(s.matrix[i][c])
		noise := (s.n - ci) / denom
		corrected[i] = ci - noise
	}
	sort.Slice(corrected, func(a, b int) bool { return corrected[a] < corrected[b] })
	return corrected[len(corrected)/2]
}

func (s *CountMinSketch) sameShape(other *CountMinSketch) error {
	if s.depth != other.depth || s.width != other.width {
		return errs.Init("countmin: shape mismatch")
	}
	if s.hasher.Identity() != other.hasher.Identity() {
		return errs.Init("countmin: hasher identity mismatch")
	}
	return nil
}

// Join merges other's counters into s cell-wise with saturation, and
// requires identical (depth, width, hasher identity).
func (s *CountMinSketch) Join(other *CountMinSketch) error {
	if err := s.sameShape(other); err != nil {
		return err
	}
	for i := 0; i < s.depth; i++ {
		for j := 0; j < s.width; j++ {
			s.matrix[i][j] = addClamped(s.matrix[i][j], int64(other.matrix[i][j]))
		}
	}
	s.n += other.n
	return nil
}

// Stats reports a short human-readable summary.
func (s *CountMinSketch) Stats() string {
	return humanize.Comma(s.n) + " inserts, " +
		humanize.Comma(int64(s.depth)) + "x" + humanize.Comma(int64(s.width)) + " matrix"
}

// Export serializes the sketch per the .cms layout: width(u32), depth(u32),
// n_inserts(i64), then the depth*width i32 matrix, row-major.
func (s *CountMinSketch) Export() []byte {
	w := codec.NewWriter(8 + 8 + s.depth*s.width*4)
	w.PutUint32(uint32(s.width))
	w.PutUint32(uint32(s.depth))
	w.PutInt64(s.n)
	for i := 0; i < s.depth; i++ {
		for j := 0; j < s.width; j++ {
			w.PutInt32(s.matrix[i][j])
		}
	}
	return w.Bytes()
}

// Load reconstructs a CountMinSketch from exported bytes.
func Load(data []byte, opts ...Option) (*CountMinSketch, error) {
	r := codec.NewReader(data)
	width, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("countmin: reading width: %v", err)
	}
	depth, err := r.Uint32()
	if err != nil {
		return nil, errs.Persistf("countmin: reading depth: %v", err)
	}
	n, err := r.Int64()
	if err != nil {
		return nil, errs.Persistf("countmin: reading n_inserts: %v", err)
	}

	s, err := New(int(depth), int(width), opts...)
	if err != nil {
		return nil, err
	}
	s.n = n
	for i := 0; i < s.depth; i++ {
		for j := 0; j < s.width; j++ {
			v, err := r.Int32()
			if err != nil {
				return nil, errs.Persistf("countmin: reading cell [%d][%d]: %v", i, j, err)
			}
			s.matrix[i][j] = v
		}
	}
	return s, nil
}
