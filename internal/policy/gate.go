// Package policy implementa el Policy Gate: decide si una acción está
// permitida para (scope, user, realm). Las políticas son aditivas dentro de
// un scope y la ausencia de match es deny.
package policy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/validation"
)

// Gate evalúa políticas. Mantiene un snapshot compilado por scope con TTL
// corto; las escrituras hechas vía Set/Delete lo invalidan al instante.
type Gate struct {
	repo  repository.PolicyRepository
	cache *gocache.Cache
	sf    singleflight.Group

	// gen sube con cada Invalidate; una carga iniciada antes no se cachea.
	gen atomic.Uint64
	mu  sync.Mutex
}

// NewGate crea el gate. ttl <= 0 desactiva el cache.
func NewGate(repo repository.PolicyRepository, ttl time.Duration) *Gate {
	g := &Gate{repo: repo}
	if ttl > 0 {
		g.cache = gocache.New(ttl, 2*ttl)
	}
	return g
}

func (g *Gate) snapshot(ctx context.Context, scope string) ([]Compiled, error) {
	scope = strings.ToLower(scope)
	if g.cache != nil {
		if v, ok := g.cache.Get(scope); ok {
			return v.([]Compiled), nil
		}
	}
	gen := g.gen.Load()
	v, err, _ := g.sf.Do(scope+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		raw, err := g.repo.List(ctx, scope)
		if err != nil {
			return nil, err
		}
		compiled := make([]Compiled, 0, len(raw))
		for _, p := range raw {
			if p.Active {
				compiled = append(compiled, Compile(p))
			}
		}
		if g.cache != nil {
			g.mu.Lock()
			if g.gen.Load() == gen {
				g.cache.SetDefault(scope, compiled)
			}
			g.mu.Unlock()
		}
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Compiled), nil
}

// Authorize retorna nil si alguna política del scope que aplica al caller
// contiene la acción. Si no, PolicyDenied. Un error de carga también deniega.
func (g *Gate) Authorize(ctx context.Context, scope, action string, auth types.AuthContext) error {
	log := logger.From(ctx).With(logger.Layer("policy"), logger.Op("policy.authorize"))

	policies, err := g.snapshot(ctx, scope)
	if err != nil {
		log.Error("policy load failed, denying", logger.Scope(scope), logger.Err(err))
		return otperr.ErrPolicyDenied.WithCause(err)
	}
	for _, p := range policies {
		if p.Matches(auth) && p.Caps.Has(action) {
			return nil
		}
	}
	log.Info("policy denied",
		logger.Scope(scope), logger.Action(action),
		logger.User(auth.User), logger.Realm(auth.Realm),
	)
	return otperr.ErrPolicyDenied.WithDetail(fmt.Sprintf("scope=%s action=%s", scope, action))
}

// Value retorna el valor de una acción parametrizada (ej: sms_provider=gw1)
// de la primera política que aplica, en orden de nombre.
func (g *Gate) Value(ctx context.Context, scope, action string, auth types.AuthContext) (string, bool, error) {
	policies, err := g.snapshot(ctx, scope)
	if err != nil {
		return "", false, err
	}
	for _, p := range policies {
		if !p.Matches(auth) {
			continue
		}
		if v, ok := p.Caps.Value(action); ok && v != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}

// Set crea o reemplaza una política e invalida el snapshot.
func (g *Gate) Set(ctx context.Context, p repository.Policy) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Scope = strings.ToLower(strings.TrimSpace(p.Scope))
	if !validation.ValidPolicyName(p.Name) || p.Scope == "" {
		return repository.ErrInvalidInput
	}
	if p.User == "" {
		p.User = "*"
	}
	if p.Realm == "" {
		p.Realm = "*"
	}
	if err := g.repo.Upsert(ctx, p); err != nil {
		return err
	}
	g.Invalidate()
	return nil
}

// Delete elimina una política e invalida el snapshot.
func (g *Gate) Delete(ctx context.Context, name string) error {
	if err := g.repo.Delete(ctx, name); err != nil {
		return err
	}
	g.Invalidate()
	return nil
}

// Invalidate descarta todos los snapshots, incluidas las cargas en curso.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen.Add(1)
	if g.cache != nil {
		g.cache.Flush()
	}
}
