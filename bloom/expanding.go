package bloom

import (
	"os"

	"github.com/pkg/errors"

	"github.com/sketchkit/sketchkit/codec"
	"github.com/sketchkit/sketchkit/errs"
)

// ExpandingFilter is an ordered, ever-growing sequence of Filters sharing
// the same (n_est, p): only the last is "active", earlier ones are frozen.
// When the active filter's n_ins reaches n_est, a fresh one is appended
// and becomes active (spec §4.4).
type ExpandingFilter struct {
	nEst    uint64
	p       float64
	opts    []Option
	filters []*Filter
}

// NewExpanding creates an ExpandingFilter with one initial active Filter.
func NewExpanding(estimatedElements uint64, falsePositiveRate float64, opts ...Option) (*ExpandingFilter, error) {
	first, err := New(estimatedElements, falsePositiveRate, opts...)
	if err != nil {
		return nil, err
	}
	return &ExpandingFilter{
		nEst:    estimatedElements,
		p:       falsePositiveRate,
		opts:    opts,
		filters: []*Filter{first},
	}, nil
}

// active returns the current active (last) sub-filter.
func (e *ExpandingFilter) active() *Filter {
	return e.filters[len(e.filters)-1]
}

// Add inserts key into the active filter. If that insertion saturates the
// active filter (n_ins reaches n_est), a new active filter is appended.
func (e *ExpandingFilter) Add(key []byte) uint64 {
	n := e.active().Add(key)
	if n >= e.nEst {
		next, err := New(e.nEst, e.p, e.opts...)
		if err == nil {
			e.filters = append(e.filters, next)
		}
	}
	return n
}

// Check reports true iff any sub-filter reports true.
func (e *ExpandingFilter) Check(key []byte) bool {
	for _, f := range e.filters {
		if f.Check(key) {
			return true
		}
	}
	return false
}

// Filters returns the sub-filter sequence, oldest first.
func (e *ExpandingFilter) Filters() []*Filter { return e.filters }

// Export concatenates each sub-filter's standard .blm bytes in order,
// followed by a trailing u64 sub-filter count (spec §6.7).
func (e *ExpandingFilter) Export() []byte {
	w := codec.NewWriter(0)
	for _, f := range e.filters {
		w.PutBytes(f.Export())
	}
	w.PutUint64(uint64(len(e.filters)))
	return w.Bytes()
}

// ExportToFile writes Export() to path.
func (e *ExpandingFilter) ExportToFile(path string) error {
	if err := os.WriteFile(path, e.Export(), 0o644); err != nil {
		return errors.Wrapf(err, "expandingbloom: writing filter to %s", path)
	}
	return nil
}

// LoadExpanding reconstructs an ExpandingFilter from exported bytes. The
// trailing u64 names the sub-filter count. Every sub-filter shares the
// same (n_est, p) and therefore the same byte size, so the body divides
// evenly into that many equal .blm-layout chunks.
func LoadExpanding(data []byte, opts ...Option) (*ExpandingFilter, error) {
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
	return &ExpandingFilter{nEst: nEst, p: p, opts: opts, filters: filters}, nil
}

// LoadExpandingPath reads path and loads an ExpandingFilter.
func LoadExpandingPath(path string, opts ...Option) (*ExpandingFilter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "expandingbloom: reading filter from %s", path)
	}
	return LoadExpanding(data, opts...)
}

func uint64From(b []byte) uint64 {
	r := codec.NewReader(b)
	v, _ := r.Uint64()
	return v
}
