package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/domain/types"
)

func TestIssueParse(t *testing.T) {
	c, err := NewCodec("0123456789abcdef-secret", "otpgate", "default")
	require.NoError(t, err)

	tok, err := c.Issue("alice", "MyRealm", time.Minute)
	require.NoError(t, err)
	auth, err := c.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, types.AuthContext{User: "alice", Realm: "myrealm"}, auth)

	tok, err = c.Issue("bob@other", "", time.Minute)
	require.NoError(t, err)
	auth, err = c.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, types.AuthContext{User: "bob", Realm: "other"}, auth)

	tok, err = c.Issue("carol", "", time.Minute)
	require.NoError(t, err)
	auth, err = c.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "default", auth.Realm)
}

func TestParse_Rejects(t *testing.T) {
	c, err := NewCodec("0123456789abcdef-secret", "otpgate", "default")
	require.NoError(t, err)
	other, err := NewCodec("another-secret-0123456789", "otpgate", "default")
	require.NoError(t, err)
	wrongIss, err := NewCodec("0123456789abcdef-secret", "someone", "default")
	require.NoError(t, err)

	tok, err := other.Issue("alice", "", time.Minute)
	require.NoError(t, err)
	_, err = c.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	tok, err = c.Issue("alice", "", -time.Hour)
	require.NoError(t, err)
	_, err = c.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	tok, err = wrongIss.Issue("alice", "", time.Minute)
	require.NoError(t, err)
	_, err = c.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidIssuer)

	tok, err = c.Issue("", "", time.Minute)
	require.NoError(t, err)
	_, err = c.Parse(tok)
	require.ErrorIs(t, err, ErrNoSubject)

	_, err = c.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewCodec("short", "", "")
	require.Error(t, err)
}
