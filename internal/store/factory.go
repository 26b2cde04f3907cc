package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/otpgate/internal/config"
	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
)

// Store agrupa los repositorios del core. Las transacciones pueden vivir en
// un backend distinto (redis) al de tokens y políticas.
type Store struct {
	Tokens       repository.TokenRepository
	Policies     repository.PolicyRepository
	Transactions repository.TransactionRepository

	conns []AdapterConnection
}

// Open conecta los backends según la config. Requiere que los adapters
// estén registrados (import _ ".../store/adapters/dal").
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	log := logger.From(ctx).With(logger.Layer("store"), logger.Op("store.open"))

	primary, err := OpenAdapter(ctx, AdapterConfig{
		Name:            cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		MinConns:        cfg.Storage.Postgres.MinConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		Migrate:         cfg.Storage.Migrate,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Storage.Driver, err)
	}
	s := &Store{
		Tokens:       primary.Tokens(),
		Policies:     primary.Policies(),
		Transactions: primary.Transactions(),
		conns:        []AdapterConnection{primary},
	}

	txBackend := cfg.Cache.Transactions
	if txBackend != "" && txBackend != primary.Name() {
		txConn, err := OpenAdapter(ctx, AdapterConfig{
			Name:     txBackend,
			DSN:      cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
			TxGrace:  cfg.Challenge.TTL,
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("store: open transactions backend %s: %w", txBackend, err)
		}
		s.conns = append(s.conns, txConn)
		if r := txConn.Transactions(); r != nil {
			s.Transactions = r
		}
	}

	if s.Tokens == nil || s.Policies == nil || s.Transactions == nil {
		_ = s.Close()
		return nil, repository.ErrNoDatabase
	}
	log.Info("store ready", logger.String("driver", primary.Name()), logger.String("transactions", txBackend))
	return s, nil
}

// Ping verifica todos los backends.
func (s *Store) Ping(ctx context.Context) error {
	for _, c := range s.conns {
		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	return nil
}

// Conn retorna la conexión abierta de un backend por nombre.
func (s *Store) Conn(name string) (AdapterConnection, bool) {
	for _, c := range s.conns {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// PoolStat es un snapshot de un pool de conexiones.
type PoolStat struct {
	Acquired int32
	Idle     int32
	Total    int32
}

type poolStater interface {
	PoolStat() PoolStat
}

// PoolStats retorna el estado de los backends con pool, por nombre.
func (s *Store) PoolStats() map[string]PoolStat {
	out := map[string]PoolStat{}
	for _, c := range s.conns {
		if ps, ok := c.(poolStater); ok {
			out[c.Name()] = ps.PoolStat()
		}
	}
	return out
}

// Close cierra todas las conexiones.
func (s *Store) Close() error {
	var errs []error
	for _, c := range s.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
