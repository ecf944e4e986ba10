package bounds

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	require.Equal(t, 0, Clamp(-2, 0, 3))
	require.Equal(t, 2, Clamp(2, 0, 3))
	require.Equal(t, 3, Clamp(7, 0, 3))
	require.Equal(t, 1.5, Clamp(1.5, 0.0, 3.0))
}

func TestAtLeast(t *testing.T) {
	require.Equal(t, 1, AtLeast(-4, 1))
	require.Equal(t, 9, AtLeast(9, 1))
}
