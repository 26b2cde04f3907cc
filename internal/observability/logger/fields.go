package logger

import (
	"time"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// DurationMs es la duración en milisegundos.
func DurationMs(d time.Duration) zap.Field { return zap.Int64("duration_ms", d.Milliseconds()) }

// ---- Dominio OTP ----

// Serial del token. Es un identificador, no un secreto.
func Serial(v string) zap.Field { return zap.String("serial", v) }

func TransactionID(v string) zap.Field { return zap.String("transaction_id", v) }
func TokenType(v string) zap.Field     { return zap.String("token_type", v) }
func User(v string) zap.Field          { return zap.String("user", v) }
func Realm(v string) zap.Field         { return zap.String("realm", v) }
func Scope(v string) zap.Field         { return zap.String("scope", v) }
func Action(v string) zap.Field        { return zap.String("action", v) }

// Outcome resume el resultado de una operación (ok, invalid, denied...).
func Outcome(v string) zap.Field { return zap.String("outcome", v) }

// ---- Sistema ----

func Component(v string) zap.Field { return zap.String("component", v) }

// Op es la operación actual, ej "verify.answer".
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer es la capa: handler, service, repository.
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int) zap.Field { return zap.Int("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
