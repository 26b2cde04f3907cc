// Package pg implementa el adapter PostgreSQL sobre pgxpool.
// Todas las mutaciones de estado del core son UPDATE condicionales
// (compare-and-set en el WHERE), sin locks de aplicación.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/store"
	migrations "github.com/dropDatabas3/otpgate/migrations/postgres"
)

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

// postgresAdapter implementa store.Adapter para PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }

func (a *postgresAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	if cfg.Migrate {
		if _, err := NewMigrator(migrations.FS, ".").Run(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pg: migrate: %w", err)
		}
	}
	return NewConn(pool), nil
}

// Conn es una conexión activa a PostgreSQL.
type Conn struct {
	pool *pgxpool.Pool
}

// NewConn envuelve un pool existente.
func NewConn(pool *pgxpool.Pool) *Conn { return &Conn{pool: pool} }

func (c *Conn) Name() string                   { return "postgres" }
func (c *Conn) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *Conn) Close() error {
	c.pool.Close()
	return nil
}

// PoolStat expone el estado del pool para /metrics.
func (c *Conn) PoolStat() store.PoolStat {
	st := c.pool.Stat()
	return store.PoolStat{Acquired: st.AcquiredConns(), Idle: st.IdleConns(), Total: st.TotalConns()}
}

// ─── Repositorios ───

func (c *Conn) Tokens() repository.TokenRepository             { return &tokenRepo{pool: c.pool} }
func (c *Conn) Policies() repository.PolicyRepository          { return &policyRepo{pool: c.pool} }
func (c *Conn) Transactions() repository.TransactionRepository { return &txRepo{pool: c.pool} }

// isUniqueViolation detecta SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
