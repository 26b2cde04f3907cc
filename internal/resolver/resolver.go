// Package resolver mapea un patrón de serial y la identidad del caller a
// exactamente un token. Nunca elige "el primero": ambigüedad es error.
package resolver

import (
	"context"
	"strings"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/otperr"
)

// Resolver resuelve tokens dentro del alcance del caller.
type Resolver struct {
	tokens repository.TokenRepository
}

func New(tokens repository.TokenRepository) *Resolver {
	return &Resolver{tokens: tokens}
}

// Resolve acepta un serial exacto o un prefijo terminado en "*".
// 0 matches: TokenNotFound; >1: AmbiguousToken. Sin efectos laterales.
func (r *Resolver) Resolve(ctx context.Context, pattern string, auth types.AuthContext) (*repository.Token, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, otperr.ErrTokenNotFound
	}
	owned, err := r.tokens.ListByOwner(ctx, auth.User, auth.Realm)
	if err != nil {
		return nil, otperr.ErrInternal.WithCause(err)
	}

	matches := Match(owned, pattern)
	switch len(matches) {
	case 0:
		return nil, otperr.ErrTokenNotFound.WithDetail(pattern)
	case 1:
		t := matches[0]
		return &t, nil
	default:
		return nil, otperr.ErrAmbiguousToken.WithDetail(pattern)
	}
}

// Lookup busca por serial exacto sin acotar por dueño (flujos /validate,
// donde el caller se autentica con el propio token). Igual que Match, un
// token inactivo no existe.
func (r *Resolver) Lookup(ctx context.Context, serial string) (*repository.Token, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" || strings.Contains(serial, "*") {
		return nil, otperr.ErrTokenNotFound
	}
	t, err := r.tokens.Get(ctx, serial)
	if repository.IsNotFound(err) {
		return nil, otperr.ErrTokenNotFound.WithDetail(serial)
	}
	if err != nil {
		return nil, otperr.ErrInternal.WithCause(err)
	}
	if !t.Active {
		return nil, otperr.ErrTokenNotFound.WithDetail(serial)
	}
	return t, nil
}

// Match filtra tokens activos por patrón. Solo un "*" final es comodín; un
// "*" en otra posición se compara literal.
func Match(tokens []repository.Token, pattern string) []repository.Token {
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	var out []repository.Token
	for _, t := range tokens {
		if !t.Active {
			continue
		}
		if (wildcard && strings.HasPrefix(t.Serial, prefix)) || (!wildcard && t.Serial == pattern) {
			out = append(out, t)
		}
	}
	return out
}
