package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(32)
	w.PutUint32(42)
	w.PutUint64(123456789)
	w.PutFloat32(0.05)
	w.PutInt32(-7)
	w.PutBytes([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	u32, err := r.Uint32()
	require.NoError(t, err)
	require.Equal(t, uint32(42), u32)

	u64, err := r.Uint64()
	require.NoError(t, err)
	require.Equal(t, uint64(123456789), u64)

	f, err := r.Float32()
	require.NoError(t, err)
	require.InDelta(t, 0.05, f, 1e-9)

	i32, err := r.Int32()
	require.NoError(t, err)
	require.Equal(t, int32(-7), i32)

	b, err := r.Bytes(3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, b)
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, err := r.Uint32()
	require.Error(t, err)
}

func TestHexRoundTrip(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	s := ToHex(data)
	require.Equal(t, "DEADBEEF", s)

	back, err := FromHex(s)
	require.NoError(t, err)
	require.Equal(t, data, back)
}

func TestFromHexCorrupt(t *testing.T) {
	_, err := FromHex("not-hex!!")
	require.Error(t, err)
}

func TestCHeaderContainsDefines(t *testing.T) {
	s := CHeader("my_filter", []byte{1, 2, 3}, map[string]uint64{"FPR_X1000": 50}, nil)
	require.Contains(t, s, "#define FPR_X1000 50")
	require.Contains(t, s, "static const unsigned char my_filter[3]")
}

func TestCHeaderContainsFloatDefines(t *testing.T) {
	s := CHeader("my_filter", []byte{1, 2, 3}, nil, map[string]float64{"FPR": 0.05})
	require.Contains(t, s, "#define FPR 0.050000")
}
