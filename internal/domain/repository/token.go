package repository

import (
	"context"
	"strings"
	"time"
)

// TokenType es la modalidad del token.
type TokenType string

const (
	TokenHOTP TokenType = "hmac"
	TokenTOTP TokenType = "totp"
	TokenSMS  TokenType = "sms"
	TokenQR   TokenType = "qr"
)

// ParseTokenType acepta los alias usuales ("hotp" == "hmac", "qrtoken" == "qr").
func ParseTokenType(s string) (TokenType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hmac", "hotp":
		return TokenHOTP, true
	case "totp":
		return TokenTOTP, true
	case "sms":
		return TokenSMS, true
	case "qr", "qrtoken":
		return TokenQR, true
	}
	return "", false
}

// PairingState es el estado de emparejamiento de un token QR.
type PairingState string

const (
	PairingUnpaired PairingState = "unpaired"
	PairingPaired   PairingState = "paired"
)

// Pairing agrupa el estado QR. Vacío para el resto de modalidades.
type Pairing struct {
	State PairingState
	// Nonce emitido en la invitación; el pairing response debe repetirlo.
	Nonce           string
	DevicePublicKey []byte // X25519, 32 bytes
	DeviceTokenID   string
	PairedAt        *time.Time
}

// Token es el registro durable de un token OTP.
//
// SealedSecret se escribe una sola vez al enrolar y nunca se expone.
// Counter solo crece: para HOTP/SMS es el próximo contador aceptable, para
// TOTP es el próximo time-step aceptable (último aceptado + 1).
type Token struct {
	Serial       string
	Type         TokenType
	SealedSecret string
	Counter      int64
	Digits       int
	TimeStep     int // segundos, solo TOTP
	PinHash      string
	User         string
	Realm        string
	Phone        string
	Description  string
	Active       bool
	Pairing      Pairing
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenRepository define el acceso a tokens.
type TokenRepository interface {
	// Get obtiene un token por serial exacto.
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, serial string) (*Token, error)

	// ListByOwner lista los tokens asignados a user@realm.
	ListByOwner(ctx context.Context, user, realm string) ([]Token, error)

	// Create inserta un token nuevo. Retorna ErrConflict si el serial existe.
	Create(ctx context.Context, t Token) error

	// AdvanceCounter mueve el contador de expected a next en una sola operación
	// atómica. Retorna false si el contador ya no era expected (otra request
	// ganó la carrera) o si next <= expected.
	AdvanceCounter(ctx context.Context, serial string, expected, next int64) (bool, error)

	// SetPaired pasa el token de unpaired a paired si el nonce coincide.
	// Retorna false si el token ya estaba paired o el nonce no coincide.
	SetPaired(ctx context.Context, serial, expectedNonce string, devicePub []byte, deviceTokenID string, at time.Time) (bool, error)
}
