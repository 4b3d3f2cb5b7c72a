package bloom

import (
	"os"

	"github.com/pkg/errors"

	"github.com/sketchkit/sketchkit/codec"
	"github.com/sketchkit/sketchkit/errs"
)

// RotatingFilter is a bounded ring of Filters sharing the same (n_est, p):
// Push appends a fresh active filter, Pop drops the oldest, and Rotate does
// both, maintaining size <= max_queue (spec §4.4). The ring's fixed-size
// slice with a logical head is adapted from the teacher's ring.Stripe
// (ring/ring.go), whose concurrency (atomics, sync.Pool striping) is
// dropped since this module is single-threaded cooperative (spec §5).
type RotatingFilter struct {
	nEst     uint64
	p        float64
	opts     []Option
	maxQueue int
	filters  []*Filter
}

// NewRotating creates a RotatingFilter with one initial active Filter and
// room for up to maxQueue sub-filters.
func NewRotating(estimatedElements uint64, falsePositiveRate float64, maxQueue int, opts ...Option) (*RotatingFilter, error) {
	if maxQueue < 1 {
		return nil, errs.Init("max_queue must be >= 1")
	}
	first, err := New(estimatedElements, falsePositiveRate, opts...)
	if err != nil {
		return nil, err
	}
	return &RotatingFilter{
		nEst:     estimatedElements,
		p:        falsePositiveRate,
		opts:     opts,
		maxQueue: maxQueue,
		filters:  []*Filter{first},
	}, nil
}

func (r *RotatingFilter) active() *Filter {
	return r.filters[len(r.filters)-1]
}

// Push appends a fresh active filter, evicting the oldest if this would
// exceed max_queue.
func (r *RotatingFilter) Push() error {
	next, err := New(r.nEst, r.p, r.opts...)
	if err != nil {
		return err
	}
	r.filters = append(r.filters, next)
	if len(r.filters) > r.maxQueue {
		r.filters = r.filters[1:]
	}
	return nil
}

// Pop removes the oldest sub-filter, if any.
func (r *RotatingFilter) Pop() {
	if len(r.filters) > 0 {
		r.filters = r.filters[1:]
	}
}

// Rotate is Push: it appends a new active filter and pops the oldest if
// over capacity. Exposed under both names because spec names both the
// general operation (rotate) and its components (push/pop).
func (r *RotatingFilter) Rotate() error { return r.Push() }

// Add inserts key into the active filter, rotating automatically when the
// active filter saturates (n_ins reaches n_est).
func (r *RotatingFilter) Add(key []byte) uint64 {
	n := r.active().Add(key)
	if n >= r.nEst {
		_ = r.Rotate()
	}
	return n
}

// Check reports true iff any sub-filter currently in the ring reports
// true; once a sub-filter is popped, keys only present in it are no
// longer reported.
func (r *RotatingFilter) Check(key []byte) bool {
	for _, f := range r.filters {
		if f.Check(key) {
			return true
		}
	}
	return false
}

// Filters returns the current ring contents, oldest first.
func (r *RotatingFilter) Filters() []*Filter { return r.filters }

// Export concatenates each sub-filter's .blm bytes in ring order, followed
// by a trailing u64 sub-filter count (spec §6.7), identical in shape to
// ExpandingFilter.Export.
func (r *RotatingFilter) Export() []byte {
	w := codec.NewWriter(0)
	for _, f := range r.filters {
		w.PutBytes(f.Export())
	}
	w.PutUint64(uint64(len(r.filters)))
	return w.Bytes()
}

// ExportToFile writes Export() to path.
func (r *RotatingFilter) ExportToFile(path string) error {
	if err := os.WriteFile(path, r.Export(), 0o644); err != nil {
		return errors.Wrapf(err, "rotatingbloom: writing filter to %s", path)
	}
	return nil
}

// LoadRotating reconstructs a RotatingFilter from exported bytes. maxQueue
// must be supplied by the caller since it is not itself part of the
// on-disk contract (only the filters actually present are serialized).
func LoadRotating(data []byte, maxQueue int, opts ...Option) (*RotatingFilter, error) {
	if len(data) < 8 {
		return nil, errs.Persistf("file too short: %d bytes", len(data))
	}
	count64 := uint64From(data[len(data)-8:])
	body := data[:len(data)-8]
	if count64 == 0 || uint64(len(body))%count64 != 0 {
		return nil, errs.Persistf("sub-filter count %d does not evenly divide body length %d", count64, len(body))
	}
	chunkLen := len(body) / int(count64)

	filters := make([]*Filter, 0, count64)
	var nEst uint64
	var p float64
	for i := uint64(0); i < count64; i++ {
		start := int(i) * chunkLen
		f, err := Load(body[start:start+chunkLen], opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "loading sub-filter %d", i)
		}
		filters = append(filters, f)
		nEst, p = f.nEst, f.p
	}
	if maxQueue < len(filters) {
		maxQueue = len(filters)
	}
	return &RotatingFilter{nEst: nEst, p: p, opts: opts, maxQueue: maxQueue, filters: filters}, nil
}

// LoadRotatingPath reads path and loads a RotatingFilter.
func LoadRotatingPath(path string, maxQueue int, opts ...Option) (*RotatingFilter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "rotatingbloom: reading filter from %s", path)
	}
	return LoadRotating(data, maxQueue, opts...)
}
