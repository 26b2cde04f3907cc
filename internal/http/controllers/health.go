package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/otpgate/internal/http/reply"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
)

// Pinger es cualquier backend que se pueda chequear.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health maneja /healthz.
type Health struct {
	store   Pinger
	version string
}

func NewHealth(store Pinger, version string) *Health {
	return &Health{store: store, version: version}
}

func (c *Health) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if c.version != "" {
		w.Header().Set("X-Service-Version", c.version)
	}
	status := "ready"
	if c.store != nil {
		if err := c.store.Ping(ctx); err != nil {
			logger.From(ctx).Warn("health check failed", logger.Layer("controller"), logger.Err(err))
			reply.WriteHTTPError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "storage unavailable")
			return
		}
	}
	reply.WriteValue(w, true, map[string]string{"status": status})
}
