package totp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var rfcSecret = []byte("12345678901234567890")

func TestGenerate_RFC6238SHA1(t *testing.T) {
	cases := []struct {
		unix int64
		want string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
	}
	for _, c := range cases {
		got, err := Generate(rfcSecret, time.Unix(c.unix, 0), 30, 8)
		require.NoError(t, err)
		require.Equal(t, c.want, got, "T=%d", c.unix)
	}
}

func TestVerify_SameAndAdjacentStep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	code, err := Generate(rfcSecret, now, 30, 6)
	require.NoError(t, err)

	ok, step := Verify(rfcSecret, code, now, 30, 6, 1, 0)
	require.True(t, ok)
	require.Equal(t, StepAt(now, 30), step)

	ok, _ = Verify(rfcSecret, code, now.Add(30*time.Second), 30, 6, 1, 0)
	require.True(t, ok, "adjacent step forward")
	ok, _ = Verify(rfcSecret, code, now.Add(-30*time.Second), 30, 6, 1, 0)
	require.True(t, ok, "adjacent step backward")
}

func TestVerify_FailsTwoStepsAway(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	code, err := Generate(rfcSecret, now, 30, 6)
	require.NoError(t, err)

	ok, _ := Verify(rfcSecret, code, now.Add(60*time.Second), 30, 6, 1, 0)
	require.False(t, ok)
	ok, _ = Verify(rfcSecret, code, now.Add(-60*time.Second), 30, 6, 1, 0)
	require.False(t, ok)
}

func TestVerify_AntiReplay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	code, err := Generate(rfcSecret, now, 30, 6)
	require.NoError(t, err)

	ok, step := Verify(rfcSecret, code, now, 30, 6, 1, 0)
	require.True(t, ok)

	ok, _ = Verify(rfcSecret, code, now, 30, 6, 1, step+1)
	require.False(t, ok)
}

func TestOTPAuthURL(t *testing.T) {
	u := OTPAuthURL("totp", "otpgate", "alice@corp", "GEZDGNBV", 6, 30, 0)
	require.True(t, strings.HasPrefix(u, "otpauth://totp/otpgate:alice@corp?"))
	require.Contains(t, u, "period=30")

	u = OTPAuthURL("hotp", "otpgate", "bob", "GEZDGNBV", 8, 0, 5)
	require.Contains(t, u, "counter=5")
	require.Contains(t, u, "digits=8")
}
