// Package sms entrega el OTP de un challenge por un transporte configurado.
//
// El core solo necesita Deliver; los providers vienen de config y se eligen
// por nombre (policy sms_provider o el default).
package sms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/otpgate/internal/config"
	"github.com/dropDatabas3/otpgate/internal/metrics"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/util"
)

// DefaultTimeout acota cada entrega.
const DefaultTimeout = 10 * time.Second

// Placeholder del OTP en el template.
const Placeholder = "<otp>"

var ErrUnknownProvider = errors.New("sms: unknown provider")

// Transport entrega un mensaje a un número.
type Transport interface {
	Deliver(ctx context.Context, phone, message string) error
}

// Registry agrupa transports por nombre.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]Transport
	def        string
	timeout    time.Duration
}

func NewRegistry(defaultName string, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{transports: map[string]Transport{}, def: defaultName, timeout: timeout}
}

// Register agrega o reemplaza un transport. Si no hay default, el primero lo es.
func (r *Registry) Register(name string, t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[name] = t
	if r.def == "" {
		r.def = name
	}
}

// Names retorna los providers registrados, ordenados.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.transports))
	for n := range r.transports {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) pick(name string) (string, Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.def
	}
	t, ok := r.transports[name]
	if !ok {
		return name, nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return name, t, nil
}

// Deliver entrega por el provider indicado ("" = default). Cualquier falla
// es DeliveryFailure.
func (r *Registry) Deliver(ctx context.Context, provider, phone, message string) error {
	name, t, err := r.pick(provider)
	log := logger.From(ctx).With(logger.Component("sms"), logger.String("provider", name), logger.String("phone", util.MaskPhone(phone)))
	if err != nil {
		metrics.SMSDelivery(name, "unknown_provider")
		log.Error("sms provider not configured")
		return otperr.ErrDeliveryFailure.WithCause(err)
	}
	if strings.TrimSpace(phone) == "" {
		metrics.SMSDelivery(name, "no_phone")
		return otperr.ErrDeliveryFailure.WithDetail("token has no phone number")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	if err := t.Deliver(ctx, phone, message); err != nil {
		metrics.SMSDelivery(name, "failed")
		log.Warn("sms delivery failed", logger.Err(err), logger.DurationMs(time.Since(start)))
		return otperr.ErrDeliveryFailure.WithCause(err)
	}
	metrics.SMSDelivery(name, "ok")
	log.Info("sms delivered", logger.DurationMs(time.Since(start)))
	return nil
}

// Render reemplaza <otp> en el template. Sin placeholder, el OTP va primero.
func Render(tpl, otp string) string {
	if tpl == "" {
		return otp
	}
	if !strings.Contains(tpl, Placeholder) {
		return otp + " " + tpl
	}
	return strings.ReplaceAll(tpl, Placeholder, otp)
}

// FromConfig arma el registry con los providers de config.
func FromConfig(cfg *config.Config) (*Registry, error) {
	r := NewRegistry(cfg.SMS.Default, cfg.SMS.Timeout)
	for _, p := range cfg.SMS.Providers {
		var t Transport
		switch strings.ToLower(p.Kind) {
		case "file":
			t = NewFile(p.File.Path)
		case "smtp":
			t = NewSMTPGateway(p)
		case "http":
			h, err := NewHTTPGateway(p)
			if err != nil {
				return nil, fmt.Errorf("sms provider %s: %w", p.Name, err)
			}
			t = h
		default:
			return nil, fmt.Errorf("sms provider %s: unsupported kind %q", p.Name, p.Kind)
		}
		r.Register(p.Name, t)
	}
	return r, nil
}
