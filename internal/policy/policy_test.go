package policy

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/store/adapters/memory"
)

var alice = types.AuthContext{User: "passthru_user1", Realm: "mydefrealm"}

func TestParseActions(t *testing.T) {
	caps := ParseActions(" enrollHMAC, verify,, sms_provider = gw1 ,qrtoken_pairing_callback_url=https://x/p?a=b ")
	require.True(t, caps.Has("enrollhmac"))
	require.True(t, caps.Has("VERIFY"))
	v, ok := caps.Value("sms_provider")
	require.True(t, ok)
	require.Equal(t, "gw1", v)
	v, _ = caps.Value(ActionQRPairingCallback)
	require.Equal(t, "https://x/p?a=b", v)
	require.Len(t, caps, 4)
}

func TestCompiled_Matches(t *testing.T) {
	cases := []struct {
		user, realm string
		want        bool
	}{
		{"*", "*", true},
		{"", "", true},
		{"passthru_user1", "mydefrealm", true},
		{"passthru_*", "MyDefRealm", true},
		{"passthru_user1@mydefrealm", "*", true},
		{"passthru_user1@other", "*", false},
		{"bob, carol", "*", false},
		{"*, !passthru_user1", "*", false},
		{"!bob", "*", true},
		{"*", "other, mydefrealm", true},
		{"*", "other", false},
	}
	for _, c := range cases {
		p := Compile(repository.Policy{Name: "p", Scope: "selfservice", User: c.user, Realm: c.realm})
		require.Equal(t, c.want, p.Matches(alice), "user=%q realm=%q", c.user, c.realm)
	}
}

func newGate(t *testing.T, ttl time.Duration, policies ...repository.Policy) *Gate {
	t.Helper()
	repo := memory.New().Policies()
	g := NewGate(repo, ttl)
	for _, p := range policies {
		p.Active = true
		require.NoError(t, g.Set(context.Background(), p))
	}
	return g
}

func TestAuthorize_AllowAndFailClosed(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, time.Minute, repository.Policy{
		Name: "self1", Scope: "selfservice", Action: "enrollHMAC, verify", User: "*", Realm: "*",
	})
	require.NoError(t, g.Authorize(ctx, ScopeSelfservice, ActionVerify, alice))
	require.Error(t, g.Authorize(ctx, ScopeSelfservice, "delete", alice))

	require.NoError(t, g.Delete(ctx, "self1"))
	err := g.Authorize(ctx, ScopeSelfservice, ActionVerify, alice)
	require.ErrorIs(t, err, otperr.ErrPolicyDenied)
	require.True(t, strings.Contains(otperr.As(err).Message, "not allow"))
}

func TestAuthorize_Additive(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, time.Minute,
		repository.Policy{Name: "a", Scope: "selfservice", Action: "enrollHMAC"},
		repository.Policy{Name: "b", Scope: "selfservice", Action: "verify", User: "passthru_*"},
		repository.Policy{Name: "c", Scope: "selfservice", Action: "delete", User: "someone"},
	)
	require.NoError(t, g.Authorize(ctx, ScopeSelfservice, "enrollHMAC", alice))
	require.NoError(t, g.Authorize(ctx, ScopeSelfservice, ActionVerify, alice))
	require.Error(t, g.Authorize(ctx, ScopeSelfservice, "delete", alice))
	require.Error(t, g.Authorize(ctx, ScopeAuthentication, ActionVerify, alice))
}

func TestValue(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, time.Minute,
		repository.Policy{Name: "sms", Scope: "authentication", Action: "sms_provider=gw2"},
	)
	v, ok, err := g.Value(ctx, ScopeAuthentication, ActionSMSProvider, alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "gw2", v)

	_, ok, err = g.Value(ctx, ScopeAuthentication, ActionQRChallengeCallback, alice)
	require.NoError(t, err)
	require.False(t, ok)
}

type countingRepo struct {
	repository.PolicyRepository
	lists int32
	fail  bool
}

func (c *countingRepo) List(ctx context.Context, scope string) ([]repository.Policy, error) {
	atomic.AddInt32(&c.lists, 1)
	if c.fail {
		return nil, errors.New("db down")
	}
	return c.PolicyRepository.List(ctx, scope)
}

func TestGate_CachesSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{PolicyRepository: memory.New().Policies()}
	g := NewGate(repo, time.Minute)
	require.NoError(t, g.Set(ctx, repository.Policy{Name: "p", Scope: "selfservice", Action: "verify", Active: true}))

	for i := 0; i < 5; i++ {
		require.NoError(t, g.Authorize(ctx, ScopeSelfservice, ActionVerify, alice))
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&repo.lists))
}

func TestGate_LoadErrorDenies(t *testing.T) {
	repo := &countingRepo{PolicyRepository: memory.New().Policies(), fail: true}
	g := NewGate(repo, 0)
	err := g.Authorize(context.Background(), ScopeSelfservice, ActionVerify, alice)
	require.ErrorIs(t, err, otperr.ErrPolicyDenied)
}

// blockingRepo lee las políticas y se bloquea antes de devolverlas, solo en
// la primera llamada.
type blockingRepo struct {
	repository.PolicyRepository
	entered chan struct{}
	release chan struct{}
	calls   int32
}

func (b *blockingRepo) List(ctx context.Context, scope string) ([]repository.Policy, error) {
	out, err := b.PolicyRepository.List(ctx, scope)
	if atomic.AddInt32(&b.calls, 1) == 1 {
		close(b.entered)
		<-b.release
	}
	return out, err
}

func TestGate_DeleteDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := &blockingRepo{
		PolicyRepository: memory.New().Policies(),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	g := NewGate(repo, time.Minute)
	require.NoError(t, repo.PolicyRepository.Upsert(ctx, repository.Policy{
		Name: "T1", Scope: "selfservice", Action: "verify", User: "*", Realm: "*", Active: true,
	}))

	done := make(chan error, 1)
	go func() { done <- g.Authorize(ctx, ScopeSelfservice, ActionVerify, alice) }()
	<-repo.entered

	require.NoError(t, g.Delete(ctx, "T1"))
	close(repo.release)
	require.NoError(t, <-done)

	err := g.Authorize(ctx, ScopeSelfservice, ActionVerify, alice)
	require.ErrorIs(t, err, otperr.ErrPolicyDenied)
	require.Contains(t, otperr.As(err).Message, "not allow")
}
