// Package store provee el registry de adaptadores de persistencia y la
// factory que arma los repositorios del core según la config.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
)

// Adapter es un backend capaz de crear repositorios.
type Adapter interface {
	// Name: "memory", "postgres", "redis".
	Name() string

	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection es una conexión activa. Los repositorios que el backend
// no soporta retornan nil (ej: redis solo guarda transacciones).
type AdapterConnection interface {
	Name() string
	Ping(ctx context.Context) error
	Close() error

	Tokens() repository.TokenRepository
	Policies() repository.PolicyRepository
	Transactions() repository.TransactionRepository
}

// AdapterConfig configuración para conectar.
type AdapterConfig struct {
	Name string

	// DSN (postgres) o addr host:port (redis)
	DSN      string
	Password string
	DB       int
	Prefix   string

	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration

	// Migrate aplica las migraciones embebidas al conectar (postgres).
	Migrate bool

	// TxGrace se suma al TTL de las keys de transacciones (redis), así una
	// transacción vencida se puede reportar como expired y no como not found.
	TxGrace time.Duration
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter. Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre una conexión con el adapter indicado en cfg.Name.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered (registered: %v)", cfg.Name, ListAdapters())
	}
	return a.Connect(ctx, cfg)
}
