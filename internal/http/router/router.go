// Package router arma el árbol de rutas chi y su pila de middlewares.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/otpgate/internal/http/controllers"
	"github.com/dropDatabas3/otpgate/internal/http/middlewares"
	"github.com/dropDatabas3/otpgate/internal/http/reply"
	"github.com/dropDatabas3/otpgate/internal/rate"
)

// Deps contiene todo lo que el router necesita. Los limiters son opcionales.
type Deps struct {
	UserService *controllers.UserService
	Validate    *controllers.Validate
	System      *controllers.System
	Health      *controllers.Health

	Auth        middlewares.TokenParser
	AdminAPIKey string

	ValidateLimiter rate.Limiter
	VerifyLimiter   rate.Limiter

	MaxBodyBytes int64
	// Metrics expone /metrics si es true.
	Metrics bool
}

// New construye el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middlewares.WithRecover(),
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		middlewares.WithMetrics(),
		middlewares.WithSecurityHeaders(),
	)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		reply.WriteHTTPError(w, http.StatusMethodNotAllowed, reply.CodeMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		reply.WriteHTTPError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
	}
	if d.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middlewares.WithNoStore(), middlewares.WithMaxBody(d.MaxBodyBytes))

		if d.Validate != nil {
			r.Group(func(r chi.Router) {
				r.Use(middlewares.WithRateLimit(d.ValidateLimiter, nil))
				r.Post("/validate/check_s", d.Validate.CheckSerial)
				r.Post("/validate/check_t", d.Validate.CheckTransaction)
				r.Post("/validate/pair", d.Validate.Pair)
			})
		}

		if d.UserService != nil && d.Auth != nil {
			r.Group(func(r chi.Router) {
				r.Use(middlewares.RequireAuth(d.Auth), middlewares.WithRateLimit(d.VerifyLimiter, userRateKey))
				r.Post("/userservice/verify", d.UserService.Verify)
				r.Post("/userservice/enroll", d.UserService.Enroll)
			})
		}

		if d.System != nil {
			r.Group(func(r chi.Router) {
				r.Use(middlewares.RequireAdminKey(d.AdminAPIKey))
				r.Post("/admin/init", d.System.Init)
				r.Post("/system/setPolicy", d.System.SetPolicy)
				r.Post("/system/delPolicy", d.System.DeletePolicy)
			})
		}
	})
	return r
}

// userRateKey limita por usuario autenticado y ruta.
func userRateKey(r *http.Request) string {
	if a, ok := middlewares.GetAuth(r.Context()); ok {
		return a.String() + "|" + r.URL.Path
	}
	return middlewares.IPPathRateKey(r)
}
