package middlewares

import (
	"context"

	"github.com/dropDatabas3/otpgate/internal/domain/types"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxAuth
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestID, rid)
}

// GetRequestID retorna el request id o "".
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// WithAuthContext inyecta el caller autenticado.
func WithAuthContext(ctx context.Context, a types.AuthContext) context.Context {
	return context.WithValue(ctx, ctxAuth, a)
}

// GetAuth retorna el caller autenticado; ok=false si la ruta no exige auth.
func GetAuth(ctx context.Context) (types.AuthContext, bool) {
	a, ok := ctx.Value(ctxAuth).(types.AuthContext)
	return a, ok
}
