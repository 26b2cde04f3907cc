package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/store/adapters/memory"
)

func seed(t *testing.T) *Resolver {
	t.Helper()
	ctx := context.Background()
	repo := memory.New().Tokens()
	for _, tok := range []repository.Token{
		{Serial: "token_1", User: "passthru_user1", Realm: "mydefrealm", Active: true},
		{Serial: "token_2", User: "passthru_user1", Realm: "mydefrealm", Active: true},
		{Serial: "hmac_1", User: "passthru_user1", Realm: "mydefrealm", Active: true},
		{Serial: "hmac_off", User: "passthru_user1", Realm: "mydefrealm", Active: false},
		{Serial: "nokto_1", User: "someone_else", Realm: "mydefrealm", Active: true},
	} {
		require.NoError(t, repo.Create(ctx, tok))
	}
	return New(repo)
}

var alice = types.AuthContext{User: "passthru_user1", Realm: "mydefrealm"}

func TestResolve(t *testing.T) {
	r := seed(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		pattern string
		serial  string
		kind    otperr.Kind
	}{
		{"exact", "token_1", "token_1", ""},
		{"wildcard unique", "hmac*", "hmac_1", ""},
		{"wildcard ambiguous", "token_*", "", otperr.KindAmbiguousToken},
		{"wildcard none", "nokto_*", "", otperr.KindTokenNotFound},
		{"exact other owner", "nokto_1", "", otperr.KindTokenNotFound},
		{"inactive ignored", "hmac_off", "", otperr.KindTokenNotFound},
		{"star not trailing is literal", "tok*n_1", "", otperr.KindTokenNotFound},
		{"empty", "", "", otperr.KindTokenNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tok, err := r.Resolve(ctx, c.pattern, alice)
			if c.kind != "" {
				require.Error(t, err)
				require.Equal(t, c.kind, otperr.KindOf(err))
				require.Nil(t, tok)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.serial, tok.Serial)
		})
	}
}

func TestResolve_Messages(t *testing.T) {
	r := seed(t)
	_, err := r.Resolve(context.Background(), "token_*", alice)
	require.Equal(t, "multiple tokens found!", otperr.As(err).Message)
	_, err = r.Resolve(context.Background(), "nokto_*", alice)
	require.Equal(t, "no token found!", otperr.As(err).Message)
}

func TestLookup(t *testing.T) {
	r := seed(t)
	ctx := context.Background()
	tok, err := r.Lookup(ctx, "nokto_1")
	require.NoError(t, err)
	require.Equal(t, "someone_else", tok.User)

	_, err = r.Lookup(ctx, "token_*")
	require.ErrorIs(t, err, otperr.ErrTokenNotFound)
	_, err = r.Lookup(ctx, "missing")
	require.ErrorIs(t, err, otperr.ErrTokenNotFound)
	_, err = r.Lookup(ctx, "hmac_off")
	require.ErrorIs(t, err, otperr.ErrTokenNotFound)
}
