package challenge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/store/adapters/memory"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var smsTok = &repository.Token{Serial: "sms1", Type: repository.TokenSMS}

func smsBuilder(otp string) PayloadBuilder {
	return func(_ context.Context, id string) (Payload, error) {
		return Payload{Message: "sms submitted", OTPHash: HashOTP(id, otp)}, nil
	}
}

func otpValidator(candidate string) ResponseValidator {
	return func(_ context.Context, tx *repository.Transaction) error {
		if MatchOTP(tx, candidate) {
			return nil
		}
		return otperr.ErrInvalidOtp
	}
}

func newManager(t *testing.T, ttl time.Duration) (*Manager, *clock) {
	t.Helper()
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	return NewManager(memory.New().Transactions(), ttl, WithClock(c.Now)), c
}

func TestCreateAnswerOnce(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	ctx := context.Background()

	tx, err := m.Create(ctx, smsTok, smsBuilder("123456"))
	require.NoError(t, err)
	require.Len(t, tx.ID, 20)
	require.Equal(t, repository.TxPending, tx.Status)
	require.Equal(t, time.Minute, tx.ExpiresAt.Sub(tx.CreatedAt))
	require.NotContains(t, tx.OTPHash, "123456")

	_, err = m.Answer(ctx, tx.ID, otpValidator("000000"))
	require.ErrorIs(t, err, otperr.ErrInvalidOtp)

	got, err := m.Answer(ctx, tx.ID, otpValidator("123456"))
	require.NoError(t, err)
	require.Equal(t, repository.TxConsumed, got.Status)

	_, err = m.Answer(ctx, tx.ID, otpValidator("123456"))
	require.ErrorIs(t, err, otperr.ErrTransactionAlreadyConsumed)
}

func TestAnswer_NotFoundAndExpired(t *testing.T) {
	m, c := newManager(t, time.Minute)
	ctx := context.Background()

	_, err := m.Answer(ctx, "12345", otpValidator("1"))
	require.ErrorIs(t, err, otperr.ErrTransactionNotFound)

	tx, err := m.Create(ctx, smsTok, smsBuilder("654321"))
	require.NoError(t, err)
	c.Advance(time.Minute)
	_, err = m.Answer(ctx, tx.ID, otpValidator("654321"))
	require.ErrorIs(t, err, otperr.ErrTransactionExpired)
}

func TestAnswer_ConcurrentExactlyOnce(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	ctx := context.Background()
	tx, err := m.Create(ctx, smsTok, smsBuilder("111111"))
	require.NoError(t, err)

	var ok, consumed, other int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := m.Answer(ctx, tx.ID, otpValidator("111111"))
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, otperr.ErrTransactionAlreadyConsumed):
				atomic.AddInt32(&consumed, 1)
			default:
				atomic.AddInt32(&other, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	require.Equal(t, int32(1), ok)
	require.Equal(t, int32(63), consumed)
	require.Zero(t, other)
}

func TestCreate_BuilderErrorStoresNothing(t *testing.T) {
	repo := memory.New().Transactions()
	m := NewManager(repo, time.Minute)
	var seen string
	_, err := m.Create(context.Background(), smsTok, func(_ context.Context, id string) (Payload, error) {
		seen = id
		return Payload{}, otperr.ErrPairingError
	})
	require.ErrorIs(t, err, otperr.ErrPairingError)
	_, err = repo.Get(context.Background(), seen)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMatchOTP(t *testing.T) {
	tx := &repository.Transaction{ID: "42", OTPHash: HashOTP("42", "999999")}
	require.True(t, MatchOTP(tx, "999999"))
	require.False(t, MatchOTP(tx, "999998"))
	require.False(t, MatchOTP(&repository.Transaction{ID: "42"}, ""))
}
