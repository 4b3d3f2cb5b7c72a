package bitset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitSetSetGet(t *testing.T) {
	b := New(100)
	require.False(t, b.Get(5))
	b.Set(5)
	require.True(t, b.Get(5))
	require.Equal(t, uint64(1), b.Popcount())
}

func TestBitSetUnionIntersect(t *testing.T) {
	a := New(16)
	b := New(16)
	a.Set(0)
	a.Set(1)
	b.Set(1)
	b.Set(2)

	require.Equal(t, uint64(1), a.IntersectionPopcount(b))
	require.Equal(t, uint64(3), a.UnionPopcount(b))

	a.Intersect(b)
	require.True(t, a.Get(1))
	require.False(t, a.Get(0))
}

func TestBitSetClear(t *testing.T) {
	b := New(8)
	b.Set(0)
	b.Set(7)
	b.Clear()
	require.Equal(t, uint64(0), b.Popcount())
}

func TestCounterArraySaturation(t *testing.T) {
	c := NewCounterArray(1)
	c.counters[0] = math.MaxUint32
	require.Equal(t, uint32(math.MaxUint32), c.Incr(0))

	c.counters[0] = 0
	require.Equal(t, uint32(0), c.Decr(0))
}

func TestCounterArrayRoundTripCycles(t *testing.T) {
	c := NewCounterArray(4)
	for i := 0; i < 10; i++ {
		c.Incr(2)
		c.Decr(2)
	}
	require.Equal(t, uint32(0), c.Get(2))
}

func TestCounterArrayNonZeroCount(t *testing.T) {
	c := NewCounterArray(4)
	c.Incr(0)
	c.Incr(2)
	require.Equal(t, uint64(2), c.NonZeroCount())
}

func TestCounterArrayUnionIntersect(t *testing.T) {
	a := FromUint32([]uint32{1, 2, 3})
	b := FromUint32([]uint32{5, 0, 10})
	sum := FromUint32([]uint32{1, 2, 3})
	sum.UnionSaturating(b)
	require.Equal(t, []uint32{6, 2, 13}, sum.Raw())

	m := FromUint32([]uint32{1, 2, 3})
	m.IntersectMin(a)
	require.Equal(t, []uint32{1, 2, 3}, m.Raw())
}
