package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Migrate  bool   `yaml:"migrate"`
		Postgres struct {
			MaxConns        int32         `yaml:"max_conns"`
			MinConns        int32         `yaml:"min_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// Backend de transacciones: "" (igual que storage) | memory | redis | postgres
		Transactions string `yaml:"transactions"`
		Redis        struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	OTP struct {
		HOTPWindow int `yaml:"hotp_window"`
		TOTPWindow int `yaml:"totp_window"`
		TOTPStep   int `yaml:"totp_step"`
		Digits     int `yaml:"digits"`
		// Issuer que ven las apps autenticadoras en otpauth://
		Issuer string `yaml:"issuer"`
	} `yaml:"otp"`

	Challenge struct {
		TTL time.Duration `yaml:"ttl"`
		// <otp> se reemplaza por el código. La primera palabra debe ser el OTP.
		SMSTemplate string `yaml:"sms_template"`
		QRMessage   string `yaml:"qr_message"`
	} `yaml:"challenge"`

	QR struct {
		// X25519 privada en base64 (32 bytes). Vacía: se genera al boot.
		ServerKey            string `yaml:"server_key"`
		Scheme               string `yaml:"scheme"`
		PairingCallbackURL   string `yaml:"pairing_callback_url"`
		ChallengeCallbackURL string `yaml:"challenge_callback_url"`
	} `yaml:"qr"`

	SMS struct {
		Default   string        `yaml:"default"`
		Timeout   time.Duration `yaml:"timeout"`
		Providers []SMSProvider `yaml:"providers"`
	} `yaml:"sms"`

	Policy struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"policy"`

	Auth struct {
		JWT struct {
			Issuer string `yaml:"issuer"`
			Secret string `yaml:"secret"`
		} `yaml:"jwt"`
		DefaultRealm string `yaml:"default_realm"`
		AdminAPIKey  string `yaml:"admin_api_key"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// memory | redis
		Backend  string    `yaml:"backend"`
		Validate RateLimit `yaml:"validate"`
		Verify   RateLimit `yaml:"verify"`
	} `yaml:"rate"`

	Security struct {
		// base64(32 bytes) para sellar seeds
		SecretBoxMasterKey string `yaml:"secretbox_master_key"`
	} `yaml:"security"`
}

type RateLimit struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// SMSProvider describe un transporte SMS configurado por nombre.
type SMSProvider struct {
	Name string `yaml:"name"`
	// file | smtp | http
	Kind string `yaml:"kind"`

	File struct {
		Path string `yaml:"path"`
	} `yaml:"file"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		// Destinatario; {phone} se reemplaza por el número.
		To  string `yaml:"to"`
		TLS string `yaml:"tls"` // auto | starttls | ssl | none
	} `yaml:"smtp"`

	HTTP struct {
		URL        string            `yaml:"url"`
		PhoneParam string            `yaml:"phone_param"`
		TextParam  string            `yaml:"text_param"`
		Username   string            `yaml:"username"`
		Password   string            `yaml:"password"`
		Headers    map[string]string `yaml:"headers"`
	} `yaml:"http"`
}

// Default retorna una config con todos los defaults aplicados.
func Default() *Config {
	var c Config
	c.setDefaults()
	return &c
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.setDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromEnv arma la config sin archivo: defaults más variables OTPGATE_*.
func FromEnv() (*Config, error) {
	var c Config
	c.setDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "otpgate"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 64 << 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxConns == 0 {
		c.Storage.Postgres.MaxConns = 10
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "otpgate:"
	}
	if c.OTP.HOTPWindow == 0 {
		c.OTP.HOTPWindow = 10
	}
	if c.OTP.TOTPWindow == 0 {
		c.OTP.TOTPWindow = 1
	}
	if c.OTP.TOTPStep == 0 {
		c.OTP.TOTPStep = 30
	}
	if c.OTP.Digits == 0 {
		c.OTP.Digits = 6
	}
	if c.OTP.Issuer == "" {
		c.OTP.Issuer = "otpgate"
	}
	if c.Challenge.TTL == 0 {
		c.Challenge.TTL = 2 * time.Minute
	}
	if c.Challenge.SMSTemplate == "" {
		c.Challenge.SMSTemplate = "<otp> is your one-time password"
	}
	if c.Challenge.QRMessage == "" {
		c.Challenge.QRMessage = "please confirm the login"
	}
	if c.QR.Scheme == "" {
		c.QR.Scheme = "otpgate"
	}
	if c.SMS.Timeout == 0 {
		c.SMS.Timeout = 10 * time.Second
	}
	if c.Policy.CacheTTL == 0 {
		c.Policy.CacheTTL = 5 * time.Second
	}
	if c.Auth.DefaultRealm == "" {
		c.Auth.DefaultRealm = "default"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Validate.Limit == 0 {
		c.Rate.Validate.Limit = 30
	}
	if c.Rate.Validate.Window == 0 {
		c.Rate.Validate.Window = time.Minute
	}
	if c.Rate.Verify.Limit == 0 {
		c.Rate.Verify.Limit = 20
	}
	if c.Rate.Verify.Window == 0 {
		c.Rate.Verify.Window = time.Minute
	}
	for i := range c.SMS.Providers {
		p := &c.SMS.Providers[i]
		if p.SMTP.TLS == "" {
			p.SMTP.TLS = "auto"
		}
		if p.HTTP.PhoneParam == "" {
			p.HTTP.PhoneParam = "phone"
		}
		if p.HTTP.TextParam == "" {
			p.HTTP.TextParam = "text"
		}
	}
}

// Validate chequea combinaciones que romperían el arranque.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn requerido con driver postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver inválido: %q", c.Storage.Driver))
	}
	switch c.Cache.Transactions {
	case "", "memory", "postgres":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr requerido con transactions=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.transactions inválido: %q", c.Cache.Transactions))
	}
	if c.Rate.Backend == "redis" && c.Cache.Redis.Addr == "" {
		errs = append(errs, errors.New("cache.redis.addr requerido con rate.backend=redis"))
	}
	if c.OTP.Digits != 6 && c.OTP.Digits != 8 {
		errs = append(errs, fmt.Errorf("otp.digits debe ser 6 u 8, es %d", c.OTP.Digits))
	}
	if c.OTP.HOTPWindow < 0 || c.OTP.TOTPWindow < 0 {
		errs = append(errs, errors.New("otp windows no pueden ser negativas"))
	}
	if c.Challenge.TTL < time.Second {
		errs = append(errs, errors.New("challenge.ttl debe ser >= 1s"))
	}
	seen := map[string]bool{}
	for _, p := range c.SMS.Providers {
		if p.Name == "" {
			errs = append(errs, errors.New("sms.providers: name requerido"))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("sms.providers: nombre duplicado %q", p.Name))
		}
		seen[p.Name] = true
		switch p.Kind {
		case "file", "smtp", "http":
		default:
			errs = append(errs, fmt.Errorf("sms.providers[%s]: kind inválido %q", p.Name, p.Kind))
		}
	}
	if c.SMS.Default != "" && !seen[c.SMS.Default] {
		errs = append(errs, fmt.Errorf("sms.default %q no está en sms.providers", c.SMS.Default))
	}
	if strings.EqualFold(c.App.Env, "prod") {
		if c.Security.SecretBoxMasterKey == "" {
			errs = append(errs, errors.New("security.secretbox_master_key requerido en prod"))
		}
		if c.Auth.JWT.Secret == "" {
			errs = append(errs, errors.New("auth.jwt.secret requerido en prod"))
		}
		if c.QR.ServerKey == "" {
			errs = append(errs, errors.New("qr.server_key requerido en prod"))
		}
	}
	return errors.Join(errs...)
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa el YAML con variables OTPGATE_*.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("OTPGATE_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("OTPGATE_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := getEnvStr("OTPGATE_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("OTPGATE_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("OTPGATE_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("OTPGATE_STORAGE_MIGRATE"); ok {
		c.Storage.Migrate = v
	}

	// CACHE
	if v, ok := getEnvStr("OTPGATE_TRANSACTIONS_BACKEND"); ok {
		c.Cache.Transactions = v
	}
	if v, ok := getEnvStr("OTPGATE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("OTPGATE_REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("OTPGATE_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	// OTP / challenge
	if v, ok := getEnvInt("OTPGATE_HOTP_WINDOW"); ok {
		c.OTP.HOTPWindow = v
	}
	if v, ok := getEnvDur("OTPGATE_CHALLENGE_TTL"); ok {
		c.Challenge.TTL = v
	}

	// QR
	if v, ok := getEnvStr("OTPGATE_QR_SERVER_KEY"); ok {
		c.QR.ServerKey = v
	}

	// AUTH
	if v, ok := getEnvStr("OTPGATE_JWT_SECRET"); ok {
		c.Auth.JWT.Secret = v
	}
	if v, ok := getEnvStr("OTPGATE_ADMIN_API_KEY"); ok {
		c.Auth.AdminAPIKey = v
	}

	// RATE
	if v, ok := getEnvBool("OTPGATE_RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}

	// SECURITY
	if v, ok := getEnvStr("OTPGATE_SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
}
