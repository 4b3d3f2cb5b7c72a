package diskbloom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryBackendBits(t *testing.T) {
	b := NewInMemory(64)
	require.False(t, b.GetBit(10))
	b.SetBit(10)
	require.True(t, b.GetBit(10))
	require.Equal(t, uint64(1), b.Popcount())

	b.ClearBit(10)
	require.False(t, b.GetBit(10))
	require.Equal(t, uint64(0), b.Popcount())
}

func TestMmapBackendRoundTrip(t *testing.T) {
	path := t.TempDir() + "/bits.blm"
	b, err := OpenMmap(path, 1024)
	require.NoError(t, err)

	b.SetBit(5)
	b.SetBit(500)
	require.True(t, b.GetBit(5))
	require.True(t, b.GetBit(500))
	require.False(t, b.GetBit(6))
	require.Equal(t, uint64(2), b.Popcount())
	require.NoError(t, b.Flush())
	require.NoError(t, b.Close())

	reopened, err := OpenMmap(path, 1024)
	require.NoError(t, err)
	defer reopened.Close()
	require.True(t, reopened.GetBit(5))
	require.True(t, reopened.GetBit(500))
}
