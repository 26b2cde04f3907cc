// Package memory implementa el adapter en memoria: un mapa por entidad
// protegido por mutex. Para dev, tests y despliegues de un solo nodo.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(_ context.Context, _ store.AdapterConfig) (store.AdapterConnection, error) {
	return New(), nil
}

// Conn es una conexión en memoria. Exportada para tests de otros paquetes.
type Conn struct {
	tokens   *TokenRepo
	policies *PolicyRepo
	txs      *TransactionRepo
}

// New crea un backend vacío.
func New() *Conn {
	return &Conn{
		tokens:   &TokenRepo{m: map[string]repository.Token{}},
		policies: &PolicyRepo{m: map[string]repository.Policy{}},
		txs:      &TransactionRepo{m: map[string]repository.Transaction{}},
	}
}

func (c *Conn) Name() string               { return "memory" }
func (c *Conn) Ping(context.Context) error { return nil }
func (c *Conn) Close() error               { return nil }

func (c *Conn) Tokens() repository.TokenRepository             { return c.tokens }
func (c *Conn) Policies() repository.PolicyRepository          { return c.policies }
func (c *Conn) Transactions() repository.TransactionRepository { return c.txs }

// ─── TokenRepository ───

type TokenRepo struct {
	mu sync.RWMutex
	m  map[string]repository.Token
}

func cloneToken(t repository.Token) repository.Token {
	if t.Pairing.DevicePublicKey != nil {
		t.Pairing.DevicePublicKey = append([]byte(nil), t.Pairing.DevicePublicKey...)
	}
	if t.Pairing.PairedAt != nil {
		at := *t.Pairing.PairedAt
		t.Pairing.PairedAt = &at
	}
	return t
}

func (r *TokenRepo) Get(_ context.Context, serial string) (*repository.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.m[serial]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneToken(t)
	return &c, nil
}

func (r *TokenRepo) ListByOwner(_ context.Context, user, realm string) ([]repository.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.Token
	for _, t := range r.m {
		if t.User == user && strings.EqualFold(t.Realm, realm) {
			out = append(out, cloneToken(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out, nil
}

func (r *TokenRepo) Create(_ context.Context, t repository.Token) error {
	if t.Serial == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[t.Serial]; ok {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	r.m[t.Serial] = cloneToken(t)
	return nil
}

func (r *TokenRepo) AdvanceCounter(_ context.Context, serial string, expected, next int64) (bool, error) {
	if next <= expected {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.m[serial]
	if !ok {
		return false, repository.ErrNotFound
	}
	if t.Counter != expected {
		return false, nil
	}
	t.Counter = next
	t.UpdatedAt = time.Now().UTC()
	r.m[serial] = t
	return true, nil
}

func (r *TokenRepo) SetPaired(_ context.Context, serial, expectedNonce string, devicePub []byte, deviceTokenID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.m[serial]
	if !ok {
		return false, repository.ErrNotFound
	}
	if t.Pairing.State != repository.PairingUnpaired || t.Pairing.Nonce != expectedNonce {
		return false, nil
	}
	t.Pairing.State = repository.PairingPaired
	t.Pairing.DevicePublicKey = append([]byte(nil), devicePub...)
	t.Pairing.DeviceTokenID = deviceTokenID
	at = at.UTC()
	t.Pairing.PairedAt = &at
	t.UpdatedAt = at
	r.m[serial] = t
	return true, nil
}

// ─── PolicyRepository ───

type PolicyRepo struct {
	mu sync.RWMutex
	m  map[string]repository.Policy
}

func (r *PolicyRepo) List(_ context.Context, scope string) ([]repository.Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.Policy
	for _, p := range r.m {
		if p.Active && strings.EqualFold(p.Scope, scope) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *PolicyRepo) Upsert(_ context.Context, p repository.Policy) error {
	if p.Name == "" || p.Scope == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.m[p.Name]; ok && p.CreatedAt.IsZero() {
		p.CreatedAt = prev.CreatedAt
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.m[p.Name] = p
	return nil
}

func (r *PolicyRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[name]; !ok {
		return repository.ErrNotFound
	}
	delete(r.m, name)
	return nil
}

// ─── TransactionRepository ───

type TransactionRepo struct {
	mu sync.Mutex
	m  map[string]repository.Transaction
}

func (r *TransactionRepo) Create(_ context.Context, tx repository.Transaction) error {
	if tx.ID == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[tx.ID]; ok {
		return repository.ErrConflict
	}
	r.m[tx.ID] = tx
	return nil
}

func (r *TransactionRepo) Get(_ context.Context, id string) (*repository.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tx, nil
}

func (r *TransactionRepo) Claim(_ context.Context, id string, now time.Time) (repository.ClaimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.m[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if tx.Status != repository.TxPending {
		return repository.ClaimNotPending, nil
	}
	if tx.Expired(now) {
		return repository.ClaimExpired, nil
	}
	tx.Status = repository.TxConsumed
	r.m[id] = tx
	return repository.ClaimAccepted, nil
}
