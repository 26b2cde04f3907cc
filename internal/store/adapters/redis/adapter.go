// Package redis implementa un adapter que solo persiste transacciones
// (challenges). Cada transacción es un hash con TTL; el consumo es un
// script Lua, atómico del lado de Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/store"
)

func init() {
	store.RegisterAdapter(&redisAdapter{})
}

type redisAdapter struct{}

func (a *redisAdapter) Name() string { return "redis" }

func (a *redisAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.DSN,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return NewConn(rdb, cfg.Prefix, cfg.TxGrace), nil
}

// Conn es una conexión a Redis.
type Conn struct {
	rdb   goredis.UniversalClient
	txs   *TransactionRepo
	owned bool
}

// NewConn usa un cliente existente. grace se suma al TTL de cada key.
func NewConn(rdb goredis.UniversalClient, prefix string, grace time.Duration) *Conn {
	return &Conn{rdb: rdb, txs: &TransactionRepo{rdb: rdb, prefix: prefix, grace: grace}, owned: true}
}

func (c *Conn) Name() string                   { return "redis" }
func (c *Conn) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Conn) Close() error {
	if !c.owned {
		return nil
	}
	return c.rdb.Close()
}

// Tokens y políticas no viven en Redis.
func (c *Conn) Tokens() repository.TokenRepository             { return nil }
func (c *Conn) Policies() repository.PolicyRepository          { return nil }
func (c *Conn) Transactions() repository.TransactionRepository { return c.txs }

// Client expone el cliente subyacente (lo reusa el rate limiter).
func (c *Conn) Client() goredis.UniversalClient { return c.rdb }

// ─── TransactionRepository ───

// ARGV[1] = ttl ms, ARGV[2..] = pares campo/valor.
var createScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return 1
`)

// ARGV[1] = now en unix ms. -1 no existe, 0 aceptado, 1 no pending, 2 vencida.
var claimScript = goredis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then return -1 end
if st ~= 'pending' then return 1 end
local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if exp <= tonumber(ARGV[1]) then return 2 end
redis.call('HSET', KEYS[1], 'status', 'consumed')
return 0
`)

type TransactionRepo struct {
	rdb    goredis.UniversalClient
	prefix string
	grace  time.Duration
}

func (r *TransactionRepo) key(id string) string {
	return r.prefix + "tx:" + id
}

func (r *TransactionRepo) Create(ctx context.Context, tx repository.Transaction) error {
	if tx.ID == "" {
		return repository.ErrInvalidInput
	}
	ttl := time.Until(tx.ExpiresAt) + r.grace
	if ttl < time.Second {
		ttl = time.Second
	}
	args := []any{
		ttl.Milliseconds(),
		"serial", tx.Serial,
		"token_type", string(tx.TokenType),
		"status", string(tx.Status),
		"created_at", tx.CreatedAt.UnixMilli(),
		"expires_at", tx.ExpiresAt.UnixMilli(),
		"message", tx.Message,
		"otp_hash", tx.OTPHash,
		"payload", tx.Payload,
		"nonce", tx.Nonce,
	}
	n, err := createScript.Run(ctx, r.rdb, []string{r.key(tx.ID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("redis: create transaction: %w", err)
	}
	if n == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (*repository.Transaction, error) {
	m, err := r.rdb.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get transaction: %w", err)
	}
	if len(m) == 0 {
		return nil, repository.ErrNotFound
	}
	created, _ := strconv.ParseInt(m["created_at"], 10, 64)
	expires, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: corrupt transaction %s: %w", id, err)
	}
	return &repository.Transaction{
		ID:        id,
		Serial:    m["serial"],
		TokenType: repository.TokenType(m["token_type"]),
		Status:    repository.TransactionStatus(m["status"]),
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
		Message:   m["message"],
		OTPHash:   m["otp_hash"],
		Payload:   m["payload"],
		Nonce:     m["nonce"],
	}, nil
}

func (r *TransactionRepo) Claim(ctx context.Context, id string, now time.Time) (repository.ClaimResult, error) {
	n, err := claimScript.Run(ctx, r.rdb, []string{r.key(id)}, now.UnixMilli()).Int()
	return claimResult(n, err)
}

// claimResult traduce la respuesta del script. Nil o un código desconocido
// nunca cuentan como aceptado.
func claimResult(n int, err error) (repository.ClaimResult, error) {
	if errors.Is(err, goredis.Nil) {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis: claim transaction: %w", err)
	}
	switch n {
	case 0:
		return repository.ClaimAccepted, nil
	case 1:
		return repository.ClaimNotPending, nil
	case 2:
		return repository.ClaimExpired, nil
	}
	return 0, repository.ErrNotFound
}
