package audit

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/dropDatabas3/otpgate/internal/observability/logger"
)

// Eventos auditados.
const (
	EventVerify       = "otp.verify"
	EventChallenge    = "otp.challenge"
	EventPair         = "qr.pair"
	EventEnroll       = "token.enroll"
	EventPolicySet    = "policy.set"
	EventPolicyDelete = "policy.delete"
)

// Log escribe un evento estructurado en el logger "audit". Los campos se
// emiten ordenados por clave.
func Log(ctx context.Context, event string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zf := make([]zap.Field, 0, len(keys)+1)
	zf = append(zf, zap.String("event", event))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	logger.From(ctx).Named("audit").Info("audit", zf...)
}
