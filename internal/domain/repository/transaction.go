package repository

import (
	"context"
	"time"
)

// TransactionStatus es el estado de un challenge.
type TransactionStatus string

const (
	TxPending  TransactionStatus = "pending"
	TxConsumed TransactionStatus = "consumed"
)

// Transaction es un challenge emitido por el servidor, ligado a un único token
// durante toda su vida. La expiración se evalúa en lectura, no hay sweeper.
type Transaction struct {
	ID        string
	Serial    string
	TokenType TokenType
	Status    TransactionStatus
	CreatedAt time.Time
	ExpiresAt time.Time
	// Message es el texto entregado fuera de banda (SMS) o mostrado (QR).
	Message string
	// OTPHash es el hash del OTP enviado por SMS. Nunca el OTP en claro.
	OTPHash string
	// Payload es el challenge QR firmado tal cual se entregó al device.
	Payload string
	Nonce   string
}

// Expired indica si la transacción venció respecto a now.
func (t *Transaction) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ClaimResult es el resultado de un intento de consumo.
type ClaimResult int

const (
	// ClaimAccepted: esta llamada hizo la transición pending -> consumed.
	ClaimAccepted ClaimResult = iota
	// ClaimNotPending: otra llamada ya la consumió.
	ClaimNotPending
	// ClaimExpired: seguía pending pero venció.
	ClaimExpired
)

// TransactionRepository persiste challenges.
type TransactionRepository interface {
	// Create guarda una transacción pending. Retorna ErrConflict si el ID existe.
	Create(ctx context.Context, tx Transaction) error

	// Get obtiene una transacción. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*Transaction, error)

	// Claim intenta pending -> consumed de forma atómica: con N llamadas
	// concurrentes exactamente una obtiene ClaimAccepted.
	// Retorna ErrNotFound si no existe.
	Claim(ctx context.Context, id string, now time.Time) (ClaimResult, error)
}
