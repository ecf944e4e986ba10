package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIDFormat(t *testing.T) {
	id, err := NewID()
	require.NoError(t, err)
	require.Len(t, id, 26)
	require.NotContains(t, id, "=")
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
			t.Fatalf("unexpected character %q in id", r)
		}
	}

	decoded, err := encoding.DecodeString(strings.ToUpper(id))
	require.NoError(t, err)
	require.Len(t, decoded, 16)
	require.Equal(t, byte(4), decoded[6]>>4, "uuid version")
	require.Equal(t, byte(0x80), decoded[8]&0xC0, "uuid variant")
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 64; i++ {
		id, err := NewID()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}
