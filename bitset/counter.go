package bitset

import "math"

// CounterArray is a flat array of saturating 32-bit unsigned counters, the
// in-memory and on-disk representation CountingBloom uses (spec §6.3: a
// dense array of u32 counters). The source kept a dense 32-bit width for
// binary-format compatibility; this type does the same.
type CounterArray struct {
	counters []uint32
}

// NewCounterArray allocates n zeroed counters.
func NewCounterArray(n uint64) *CounterArray {
	return &CounterArray{counters: make([]uint32, n)}
}

// FromUint32 wraps an existing slice in place.
func FromUint32(counters []uint32) *CounterArray {
	return &CounterArray{counters: counters}
}

// Len returns the counter count.
func (c *CounterArray) Len() uint64 { return uint64(len(c.counters)) }

// Raw exposes the backing slice for serialization.
func (c *CounterArray) Raw() []uint32 { return c.counters }

// Get returns the value at i.
func (c *CounterArray) Get(i uint64) uint32 { return c.counters[i] }

// Incr increments the counter at i by one, saturating at math.MaxUint32,
// and returns the post-increment value.
func (c *CounterArray) Incr(i uint64) uint32 {
	if c.counters[i] != math.MaxUint32 {
		c.counters[i]++
	}
	return c.counters[i]
}

// Decr decrements the counter at i by one, saturating at 0, and returns the
// post-decrement value.
func (c *CounterArray) Decr(i uint64) uint32 {
	if c.counters[i] != 0 {
		c.counters[i]--
	}
	return c.counters[i]
}

// NonZeroCount returns the number of counters with a nonzero value, used by
// CountingBloom's estimate_elements (the Bloom estimator applied over
// nonzero cells instead of set bits).
func (c *CounterArray) NonZeroCount() uint64 {
	var n uint64
	for _, v := range c.counters {
		if v != 0 {
			n++
		}
	}
	return n
}

// UnionSaturating adds other's counters into c in place, element-wise, each
// addition saturating at math.MaxUint32.
func (c *CounterArray) UnionSaturating(other *CounterArray) {
	mustSameCounterLen(c, other)
	for i := range c.counters {
		sum := uint64(c.counters[i]) + uint64(other.counters[i])
		if sum > math.MaxUint32 {
			c.counters[i] = math.MaxUint32
		} else {
			c.counters[i] = uint32(sum)
		}
	}
}

// IntersectMin sets each counter in c to min(c[i], other[i]), the
// cell-wise rule CountingBloom's intersection uses.
func (c *CounterArray) IntersectMin(other *CounterArray) {
	mustSameCounterLen(c, other)
	for i := range c.counters {
		if other.counters[i] < c.counters[i] {
			c.counters[i] = other.counters[i]
		}
	}
}

func mustSameCounterLen(a, b *CounterArray) {
	if len(a.counters) != len(b.counters) {
		panic("bitset: counter array length mismatch")
	}
}
