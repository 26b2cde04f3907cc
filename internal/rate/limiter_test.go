package rate

import (
	"context"
	"os"
	"testing"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(3, 24*time.Hour)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ip:1")
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, int64(2-i), res.Remaining)
	}
	res, err := l.Allow(ctx, "ip:1")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Greater(t, res.RetryAfter, time.Duration(0))

	res, err = l.Allow(ctx, "ip:2")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("OTPGATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OTPGATE_TEST_REDIS_ADDR not set")
	}
	client := rdb.NewClient(&rdb.Options{Addr: addr})
	defer client.Close()
	l := NewRedisLimiter(client, "otpgate:test:rl:"+time.Now().Format("150405.000")+":", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, res.Allowed)
}
