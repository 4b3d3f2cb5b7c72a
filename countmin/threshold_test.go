package countmin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamThresholdTracksAboveThreshold(t *testing.T) {
	st, err := NewStreamThreshold(5, 2000, 10)
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		st.Add([]byte("k"))
	}
	require.NotContains(t, st.Tracked(), "k")

	st.Add([]byte("k"))
	require.Contains(t, st.Tracked(), "k")
}

func TestStreamThresholdRemoveDropsBelowThreshold(t *testing.T) {
	st, err := NewStreamThreshold(5, 2000, 5)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		st.Add([]byte("k"))
	}
	require.Contains(t, st.Tracked(), "k")

	st.Remove([]byte("k"))
	st.Remove([]byte("k"))
	require.NotContains(t, st.Tracked(), "k")
}
