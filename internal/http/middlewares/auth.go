package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/http/reply"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
)

// TokenParser traduce un bearer token a la identidad del caller.
type TokenParser interface {
	Parse(token string) (types.AuthContext, error)
}

// RequireAuth exige Authorization: Bearer y deja el AuthContext en el contexto.
func RequireAuth(p TokenParser) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			scheme, tok, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="otpgate"`)
				reply.WriteHTTPError(w, http.StatusUnauthorized, reply.CodeUnauthorized, "missing bearer token")
				return
			}
			auth, err := p.Parse(tok)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="otpgate", error="invalid_token"`)
				reply.WriteHTTPError(w, http.StatusUnauthorized, reply.CodeUnauthorized, "invalid token")
				return
			}
			ctx := WithAuthContext(r.Context(), auth)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.User(auth.User), logger.Realm(auth.Realm)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdminKey compara X-Admin-API-Key en tiempo constante. Sin clave
// configurada las rutas admin quedan cerradas.
func RequireAdminKey(key string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-API-Key")
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				reply.WriteHTTPError(w, http.StatusUnauthorized, reply.CodeUnauthorized, "admin key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
