package hotp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var rfcSecret = []byte("12345678901234567890")

// Vectores del apéndice D de RFC 4226.
var rfcCodes = []string{
	"755224", "287082", "359152", "969429", "338314",
	"254676", "287922", "162583", "399871", "520489",
}

func TestGenerate_RFC4226Vectors(t *testing.T) {
	for c, want := range rfcCodes {
		got, err := Generate(rfcSecret, int64(c), 6)
		require.NoError(t, err)
		require.Equal(t, want, got, "counter %d", c)
	}
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate(rfcSecret, 0, 7)
	require.ErrorIs(t, err, ErrDigits)
	_, err = Generate(rfcSecret, -1, 6)
	require.ErrorIs(t, err, ErrCounter)
	_, err = Generate(nil, 0, 6)
	require.ErrorIs(t, err, ErrSecret)
}

func TestVerify_Window(t *testing.T) {
	ok, matched := Verify(rfcSecret, 0, 6, "969429", 10)
	require.True(t, ok)
	require.Equal(t, int64(3), matched)

	// fuera de la ventana
	ok, _ = Verify(rfcSecret, 0, 6, "520489", 5)
	require.False(t, ok)

	// nunca hacia atrás
	ok, _ = Verify(rfcSecret, 4, 6, "287082", 10)
	require.False(t, ok)
}

func TestVerify_ReplayAfterAdvance(t *testing.T) {
	code, err := Generate(rfcSecret, 1, 6)
	require.NoError(t, err)

	counter := int64(0)
	ok, matched := Verify(rfcSecret, counter, 6, code, DefaultWindow)
	require.True(t, ok)
	counter = matched + 1

	ok, _ = Verify(rfcSecret, counter, 6, code, DefaultWindow)
	require.False(t, ok)
}

func TestVerify_RejectsMalformed(t *testing.T) {
	ok, _ := Verify(rfcSecret, 0, 6, "75522", 10)
	require.False(t, ok)
	ok, _ = Verify(rfcSecret, 0, 6, " 755224 ", 10)
	require.True(t, ok)
}
