package redis

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/security/tokens"
)

func testRepo(t *testing.T) repository.TransactionRepository {
	t.Helper()
	addr := os.Getenv("OTPGATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OTPGATE_TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	c := &Conn{rdb: rdb, txs: &TransactionRepo{rdb: rdb, prefix: "otpgate-test:", grace: time.Minute}}
	return c.Transactions()
}

func TestRedis_CreateGetClaim(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	id, _ := tokens.NumericID(tokens.TransactionIDDigits)
	now := time.Now()

	tx := repository.Transaction{
		ID: id, Serial: "sms1", TokenType: repository.TokenSMS, Status: repository.TxPending,
		CreatedAt: now, ExpiresAt: now.Add(time.Minute), Message: "sms submitted", OTPHash: "h",
	}
	require.NoError(t, r.Create(ctx, tx))
	require.ErrorIs(t, r.Create(ctx, tx), repository.ErrConflict)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "sms1", got.Serial)
	require.Equal(t, repository.TxPending, got.Status)
	require.WithinDuration(t, tx.ExpiresAt, got.ExpiresAt, time.Millisecond)

	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, err := r.Claim(ctx, id, now); err == nil && res == repository.ClaimAccepted {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), accepted)

	_, err = r.Claim(ctx, "missing-"+id, now)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRedis_ClaimExpired(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	id, _ := tokens.NumericID(tokens.TransactionIDDigits)
	now := time.Now()
	require.NoError(t, r.Create(ctx, repository.Transaction{
		ID: id, Serial: "qr1", Status: repository.TxPending, CreatedAt: now, ExpiresAt: now.Add(time.Second),
	}))
	res, err := r.Claim(ctx, id, now.Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, repository.ClaimExpired, res)
}

func TestClaimResult(t *testing.T) {
	cases := []struct {
		name string
		n    int
		err  error
		want repository.ClaimResult
		fail error
	}{
		{"accepted", 0, nil, repository.ClaimAccepted, nil},
		{"not pending", 1, nil, repository.ClaimNotPending, nil},
		{"expired", 2, nil, repository.ClaimExpired, nil},
		{"missing key", -1, nil, 0, repository.ErrNotFound},
		{"nil reply", 0, goredis.Nil, 0, repository.ErrNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := claimResult(c.n, c.err)
			if c.fail != nil {
				require.ErrorIs(t, err, c.fail)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}

	_, err := claimResult(0, errors.New("conn reset"))
	require.Error(t, err)
	require.False(t, errors.Is(err, repository.ErrNotFound))
}
