package bloom

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBloomBasics(t *testing.T) {
	f, err := New(10, 0.05)
	require.NoError(t, err)
	f.Add([]byte("google.com"))
	require.True(t, f.Check([]byte("google.com")))
	require.False(t, f.Check([]byte("facebook.com")))
}

func TestBloomNoFalseNegatives(t *testing.T) {
	f, err := New(1000, 0.01)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		f.Add(key)
		require.True(t, f.Check(key))
	}
}

func TestBloomInvalidParams(t *testing.T) {
	_, err := New(0, 0.05)
	require.Error(t, err)
	_, err = New(10, 0)
	require.Error(t, err)
	_, err = New(10, 1.5)
	require.Error(t, err)
}

func TestBloomJaccardSelfAndEmpty(t *testing.T) {
	a, err := New(100, 0.05)
	require.NoError(t, err)
	a.Add([]byte("x"))

	j, err := a.JaccardIndex(a)
	require.NoError(t, err)
	require.Equal(t, 1.0, j)

	empty1, _ := New(100, 0.05)
	empty2, _ := New(100, 0.05)
	j, err = empty1.JaccardIndex(empty2)
	require.NoError(t, err)
	require.Equal(t, 1.0, j)
}

func TestBloomUnionIntersection(t *testing.T) {
	a, _ := New(100, 0.05)
	b, _ := New(100, 0.05)
	a.Add([]byte("apple"))
	b.Add([]byte("banana"))

	union, _ := New(100, 0.05)
	require.NoError(t, union.Union(a))
	require.NoError(t, union.Union(b))
	require.True(t, union.Check([]byte("apple")))
	require.True(t, union.Check([]byte("banana")))

	inter, _ := New(100, 0.05)
	require.NoError(t, inter.Union(a))
	require.NoError(t, inter.Intersection(b))
}

func TestBloomUnionMismatch(t *testing.T) {
	a, _ := New(100, 0.05)
	b, _ := New(200, 0.05)
	require.Error(t, a.Union(b))
}

func TestBloomEstimateElements(t *testing.T) {
	f, err := New(1000, 0.05)
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		f.Add([]byte{byte(i), byte(i >> 8), byte(i >> 16)})
	}
	est := f.EstimateElements()
	require.InEpsilon(t, 500, float64(est), 0.25)
}

func TestBloomEstimateElementsSaturated(t *testing.T) {
	f, err := New(4, 0.5)
	require.NoError(t, err)
	for i := 0; i < 10000; i++ {
		f.Add([]byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)})
	}
	require.Equal(t, f.NIns(), f.EstimateElements())
}

func TestBloomFalsePositiveRateBound(t *testing.T) {
	nEst := uint64(200)
	p := 0.05
	f, err := New(nEst, p)
	require.NoError(t, err)
	for i := uint64(0); i < nEst; i++ {
		f.Add([]byte{byte(i), byte(i >> 8)})
	}

	falsePositives := 0
	trials := int(nEst) * 10
	for i := 0; i < trials; i++ {
		key := []byte{byte(i), byte(i >> 8), 0xFF, 0xFF}
		if f.Check(key) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / float64(trials)
	require.LessOrEqual(t, rate, 1.5*p)
}

func TestBloomRoundTrip(t *testing.T) {
	f, err := New(1000, 0.05)
	require.NoError(t, err)
	words := []string{"the", "quick", "brown", "fox", "jumps", "over", "a", "lazy", "dog"}
	for _, w := range words {
		f.Add([]byte(w))
	}

	data := f.Export()
	require.Equal(t, int((f.M()+7)/8)+20, len(data))

	loaded, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, f.NIns(), loaded.NIns())
	for _, w := range words {
		require.Equal(t, f.Check([]byte(w)), loaded.Check([]byte(w)))
	}
	for i := 0; i < 1000; i++ {
		probe := []byte{byte(i), byte(i >> 8)}
		require.Equal(t, f.Check(probe), loaded.Check(probe))
	}
}

func TestBloomHexRoundTrip(t *testing.T) {
	f, err := New(100, 0.05)
	require.NoError(t, err)
	f.Add([]byte("hex-me"))

	hexStr := f.ExportToHex()
	loaded, err := LoadFromHex(hexStr)
	require.NoError(t, err)
	require.True(t, loaded.Check([]byte("hex-me")))
}

func TestBloomPathRoundTrip(t *testing.T) {
	f, err := New(100, 0.05)
	require.NoError(t, err)
	f.Add([]byte("path-me"))

	path := t.TempDir() + "/f.blm"
	require.NoError(t, f.ExportToFile(path))

	byPath, err := LoadPath(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	byBytes, err := Load(data)
	require.NoError(t, err)

	require.Equal(t, byPath.NIns(), byBytes.NIns())
	require.True(t, byPath.Check([]byte("path-me")))
	require.True(t, byBytes.Check([]byte("path-me")))
}

func TestBloomLoadTruncated(t *testing.T) {
	_, err := Load([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestBloomCHeaderExport(t *testing.T) {
	f, err := New(10, 0.05)
	require.NoError(t, err)
	f.Add([]byte("x"))
	s := f.ExportCHeader("my_filter")
	require.Contains(t, s, "EST_ELEMENTS")
	require.Contains(t, s, "my_filter")
}
