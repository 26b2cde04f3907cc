// Package app arma el grafo de dependencias del gateway a partir de la
// config: store, seguridad, core OTP, transporte HTTP.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/otpgate/internal/challenge"
	"github.com/dropDatabas3/otpgate/internal/config"
	"github.com/dropDatabas3/otpgate/internal/enroll"
	"github.com/dropDatabas3/otpgate/internal/http/controllers"
	"github.com/dropDatabas3/otpgate/internal/http/middlewares"
	"github.com/dropDatabas3/otpgate/internal/http/router"
	"github.com/dropDatabas3/otpgate/internal/jwt"
	"github.com/dropDatabas3/otpgate/internal/metrics"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/policy"
	"github.com/dropDatabas3/otpgate/internal/qr"
	"github.com/dropDatabas3/otpgate/internal/rate"
	"github.com/dropDatabas3/otpgate/internal/resolver"
	"github.com/dropDatabas3/otpgate/internal/security/secretbox"
	"github.com/dropDatabas3/otpgate/internal/sms"
	"github.com/dropDatabas3/otpgate/internal/store"
	"github.com/dropDatabas3/otpgate/internal/verify"
)

// App es el gateway armado.
type App struct {
	Config *config.Config
	Store  *store.Store
	Gate   *policy.Gate
	QR     *qr.Protocol
	JWT    *jwt.Codec
	Verify *verify.Service
	Enroll *enroll.Service

	Handler http.Handler

	closers []func() error
}

// New arma la app. Requiere los adapters de store registrados.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.From(ctx).With(logger.Component("app"))
	a := &App{Config: cfg}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	fail := func(err error) (*App, error) {
		_ = a.Close()
		return nil, err
	}

	boxKey, err := secretKey(cfg.Security.SecretBoxMasterKey, secretbox.ParseKey)
	if err != nil {
		return fail(fmt.Errorf("security.secretbox_master_key: %w", err))
	}
	if cfg.Security.SecretBoxMasterKey == "" {
		log.Warn("secretbox master key not set, using an ephemeral key: seeds will not survive a restart")
	}
	box, err := secretbox.New(boxKey)
	if err != nil {
		return fail(err)
	}

	qrKey, err := secretKey(cfg.QR.ServerKey, qr.ParseKey)
	if err != nil {
		return fail(fmt.Errorf("qr.server_key: %w", err))
	}
	if cfg.QR.ServerKey == "" {
		log.Warn("qr server key not set, using an ephemeral key: paired devices will need to pair again after a restart")
	}
	a.QR, err = qr.New(qrKey, cfg.QR.Scheme, st.Tokens)
	if err != nil {
		return fail(err)
	}

	jwtSecret := cfg.Auth.JWT.Secret
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fail(err)
		}
		jwtSecret = base64.RawURLEncoding.EncodeToString(b)
		log.Warn("auth.jwt.secret not set, using an ephemeral secret: /userservice tokens cannot be issued externally")
	}
	a.JWT, err = jwt.NewCodec(jwtSecret, cfg.Auth.JWT.Issuer, cfg.Auth.DefaultRealm)
	if err != nil {
		return fail(err)
	}

	smsReg, err := sms.FromConfig(cfg)
	if err != nil {
		return fail(err)
	}

	a.Gate = policy.NewGate(st.Policies, cfg.Policy.CacheTTL)
	engine := verify.NewEngine(st.Tokens, box, verify.EngineConfig{
		HOTPWindow: cfg.OTP.HOTPWindow,
		TOTPWindow: cfg.OTP.TOTPWindow,
	})
	a.Verify = verify.NewService(verify.Deps{
		Gate:                a.Gate,
		Resolver:            resolver.New(st.Tokens),
		Engine:              engine,
		Challenges:          challenge.NewManager(st.Transactions, cfg.Challenge.TTL),
		QR:                  a.QR,
		SMS:                 smsReg,
		SMSTemplate:         cfg.Challenge.SMSTemplate,
		QRMessage:           cfg.Challenge.QRMessage,
		QRChallengeCallback: cfg.QR.ChallengeCallbackURL,
	})
	a.Enroll = enroll.NewService(enroll.Deps{
		Tokens:             st.Tokens,
		Gate:               a.Gate,
		Box:                box,
		QR:                 a.QR,
		Issuer:             cfg.OTP.Issuer,
		Digits:             cfg.OTP.Digits,
		TimeStep:           cfg.OTP.TOTPStep,
		PairingCallbackURL: cfg.QR.PairingCallbackURL,
	})

	validateRL, verifyRL, err := a.limiters(ctx)
	if err != nil {
		return fail(err)
	}

	if err := metrics.Register(nil); err != nil {
		return fail(err)
	}
	if err := middlewares.RegisterMetrics(nil, st.PoolStats); err != nil {
		return fail(err)
	}

	a.Handler = router.New(router.Deps{
		UserService:     controllers.NewUserService(a.Verify, a.Enroll),
		Validate:        controllers.NewValidate(a.Verify),
		System:          controllers.NewSystem(a.Gate, a.Enroll, cfg.Auth.DefaultRealm),
		Health:          controllers.NewHealth(st, cfg.App.Version),
		Auth:            a.JWT,
		AdminAPIKey:     cfg.Auth.AdminAPIKey,
		ValidateLimiter: validateRL,
		VerifyLimiter:   verifyRL,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		Metrics:         true,
	})
	log.Info("app ready",
		logger.String("storage", cfg.Storage.Driver),
		logger.Bool("rate_limit", cfg.Rate.Enabled),
		logger.Count(len(smsReg.Names())),
	)
	return a, nil
}

// limiters arma los rate limiters. Con backend redis reusa el cliente del
// store de transacciones si existe.
func (a *App) limiters(ctx context.Context) (validate, verify rate.Limiter, err error) {
	cfg := a.Config
	if !cfg.Rate.Enabled {
		return nil, nil, nil
	}
	if strings.EqualFold(cfg.Rate.Backend, "redis") {
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		prefix := cfg.Cache.Redis.Prefix + "rl:"
		return rate.NewRedisLimiter(client, prefix+"validate:", cfg.Rate.Validate.Limit, cfg.Rate.Validate.Window),
			rate.NewRedisLimiter(client, prefix+"verify:", cfg.Rate.Verify.Limit, cfg.Rate.Verify.Window),
			nil
	}
	return rate.NewMemoryLimiter(cfg.Rate.Validate.Limit, cfg.Rate.Validate.Window),
		rate.NewMemoryLimiter(cfg.Rate.Verify.Limit, cfg.Rate.Verify.Window),
		nil
}

type redisConn interface {
	Client() goredis.UniversalClient
}

func (a *App) redisClient(ctx context.Context) (goredis.UniversalClient, error) {
	if c, ok := a.Store.Conn("redis"); ok {
		if rc, ok := c.(redisConn); ok {
			return rc.Client(), nil
		}
	}
	r := a.Config.Cache.Redis
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    []string{r.Addr},
		Password: r.Password,
		DB:       r.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rate: redis ping: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// Close libera los recursos en orden inverso.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// secretKey parsea s o, si está vacío, genera 32 bytes aleatorios.
func secretKey(s string, parse func(string) ([]byte, error)) ([]byte, error) {
	if strings.TrimSpace(s) != "" {
		return parse(s)
	}
	k := make([]byte, 32)
	if _, err := rand.Read(k); err != nil {
		return nil, err
	}
	return k, nil
}
