package pin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashCheck(t *testing.T) {
	h, err := Hash(Fast, "1234")
	require.NoError(t, err)
	require.True(t, Check("1234", h))
	require.False(t, Check("1235", h))
	require.False(t, Check("", h))
}

func TestCheck_NoPin(t *testing.T) {
	require.True(t, Check("", ""))
	require.False(t, Check("1234", ""))
}

func TestCheck_Malformed(t *testing.T) {
	require.False(t, Check("1234", "$argon2id$v=19$m=1024$abc$def"))
	require.False(t, Check("1234", "plain"))
	_, err := Hash(Fast, "")
	require.ErrorIs(t, err, ErrEmpty)
}
