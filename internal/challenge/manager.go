// Package challenge implementa el ciclo de vida de transacciones
// challenge-response compartido por tokens SMS, QR y OATH.
//
// Protocolo en dos fases: Create (trigger) emite la transacción pending;
// Answer valida la respuesta y la consume exactamente una vez.
package challenge

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/metrics"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/security/tokens"
)

// DefaultTTL de una transacción.
const DefaultTTL = 2 * time.Minute

// Payload es lo que arma cada modalidad al crear el challenge.
type Payload struct {
	Message string
	// OTPHash para SMS (ver HashOTP).
	OTPHash string
	// Payload y Nonce para QR.
	Payload string
	Nonce   string
}

// PayloadBuilder arma el payload; recibe el id ya asignado para poder
// ligarlo al contenido firmado.
type PayloadBuilder func(ctx context.Context, txID string) (Payload, error)

// ResponseValidator valida una respuesta contra la transacción. Retorna
// otperr.ErrInvalidOtp si no coincide.
type ResponseValidator func(ctx context.Context, tx *repository.Transaction) error

// Manager crea y responde transacciones.
type Manager struct {
	txs repository.TransactionRepository
	ttl time.Duration
	now func() time.Time
}

// Option configura el Manager.
type Option func(*Manager)

// WithClock reemplaza time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(txs repository.TransactionRepository, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{txs: txs, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TTL retorna la duración configurada.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create aloca un id impredecible, arma el payload y guarda la transacción
// como pending. No entrega nada: la entrega fuera de banda es del caller.
func (m *Manager) Create(ctx context.Context, tok *repository.Token, build PayloadBuilder) (*repository.Transaction, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("challenge.create"), logger.Serial(tok.Serial))

	for attempt := 0; attempt < 3; attempt++ {
		id, err := tokens.NumericID(tokens.TransactionIDDigits)
		if err != nil {
			return nil, otperr.ErrInternal.WithCause(err)
		}
		p, err := build(ctx, id)
		if err != nil {
			return nil, err
		}
		now := m.now().UTC()
		tx := repository.Transaction{
			ID:        id,
			Serial:    tok.Serial,
			TokenType: tok.Type,
			Status:    repository.TxPending,
			CreatedAt: now,
			ExpiresAt: now.Add(m.ttl),
			Message:   p.Message,
			OTPHash:   p.OTPHash,
			Payload:   p.Payload,
			Nonce:     p.Nonce,
		}
		err = m.txs.Create(ctx, tx)
		if repository.IsConflict(err) {
			continue
		}
		if err != nil {
			log.Error("store transaction failed", logger.Err(err))
			return nil, otperr.ErrInternal.WithCause(err)
		}
		metrics.ChallengeCreated(string(tok.Type))
		log.Info("challenge created", logger.TransactionID(id), logger.TokenType(string(tok.Type)))
		return &tx, nil
	}
	return nil, otperr.ErrInternal.WithDetail("transaction id collision")
}

// Peek lee una transacción respondible sin consumirla.
func (m *Manager) Peek(ctx context.Context, id string) (*repository.Transaction, error) {
	tx, err := m.txs.Get(ctx, id)
	if repository.IsNotFound(err) {
		return nil, otperr.ErrTransactionNotFound
	}
	if err != nil {
		return nil, otperr.ErrInternal.WithCause(err)
	}
	if tx.Status != repository.TxPending {
		return nil, otperr.ErrTransactionAlreadyConsumed
	}
	if tx.Expired(m.now()) {
		return nil, otperr.ErrTransactionExpired
	}
	return tx, nil
}

// Answer valida la respuesta y consume la transacción. Con respuestas
// concurrentes correctas exactamente una retorna éxito; el resto recibe
// TransactionAlreadyConsumed. Una respuesta inválida no consume.
func (m *Manager) Answer(ctx context.Context, id string, validate ResponseValidator) (*repository.Transaction, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("challenge.answer"), logger.TransactionID(id))

	tx, err := m.Peek(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validate(ctx, tx); err != nil {
		log.Info("challenge response rejected", logger.Serial(tx.Serial))
		return nil, err
	}

	res, err := m.txs.Claim(ctx, id, m.now())
	switch {
	case repository.IsNotFound(err):
		return nil, otperr.ErrTransactionNotFound
	case err != nil:
		return nil, otperr.ErrInternal.WithCause(err)
	}
	switch res {
	case repository.ClaimAccepted:
		tx.Status = repository.TxConsumed
		log.Info("challenge answered", logger.Serial(tx.Serial))
		return tx, nil
	case repository.ClaimExpired:
		return nil, otperr.ErrTransactionExpired
	default:
		log.Warn("challenge already consumed", logger.Serial(tx.Serial))
		return nil, otperr.ErrTransactionAlreadyConsumed
	}
}

// HashOTP liga el OTP enviado a la transacción. Se guarda el hash, nunca el OTP.
func HashOTP(txID, otp string) string {
	sum := sha256.Sum256([]byte(txID + ":" + otp))
	return hex.EncodeToString(sum[:])
}

// MatchOTP compara en tiempo constante.
func MatchOTP(tx *repository.Transaction, candidate string) bool {
	if tx.OTPHash == "" {
		return false
	}
	got := HashOTP(tx.ID, candidate)
	return subtle.ConstantTimeCompare([]byte(got), []byte(tx.OTPHash)) == 1
}
