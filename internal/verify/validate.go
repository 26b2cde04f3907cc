package verify

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/otpgate/internal/audit"
	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/security/pin"
)

// CheckSerial autentica con un token por serial exacto. pass es PIN+OTP;
// con solo el PIN, los tokens sms y qr disparan un challenge.
func (s *Service) CheckSerial(ctx context.Context, serial, pass string) (resp *Response, err error) {
	start := time.Now()
	var tokType string
	var owner types.AuthContext
	defer func() { s.observe(ctx, "check_s", tokType, owner, resp, err, start) }()

	if strings.TrimSpace(serial) == "" {
		return nil, otperr.ErrUnsupportedParameters.WithDetail("serial is required")
	}
	tok, err := s.d.Resolver.Lookup(ctx, serial)
	if err != nil {
		return nil, err
	}
	tokType = string(tok.Type)
	owner = types.AuthContext{User: tok.User, Realm: tok.Realm}

	if tok.Type == repository.TokenSMS || tok.Type == repository.TokenQR {
		if pin.Check(pass, tok.PinHash) {
			return s.trigger(ctx, tok, owner)
		}
	}
	if tok.Type == repository.TokenQR {
		return nil, otperr.ErrInvalidOtp
	}

	d := digitsOf(tok)
	if len(pass) < d {
		return nil, otperr.ErrInvalidOtp
	}
	pinPart, otpPart := pass[:len(pass)-d], pass[len(pass)-d:]
	if !pin.Check(pinPart, tok.PinHash) {
		return nil, otperr.ErrInvalidOtp
	}
	if err := s.d.Engine.Check(ctx, tok, otpPart); err != nil {
		return nil, err
	}
	return &Response{Value: true, Detail: Detail{Serial: tok.Serial}}, nil
}

// CheckTransaction responde una transacción sin sesión: la posesión del
// transaction id y la respuesta correcta autentican.
func (s *Service) CheckTransaction(ctx context.Context, txID, pass string) (resp *Response, err error) {
	start := time.Now()
	var tokType string
	var owner types.AuthContext
	defer func() { s.observe(ctx, "check_t", tokType, owner, resp, err, start) }()

	txID = strings.TrimSpace(txID)
	if txID == "" || strings.TrimSpace(pass) == "" {
		return nil, otperr.ErrUnsupportedParameters.WithDetail("transactionid and pass are required")
	}
	tx, err := s.d.Challenges.Peek(ctx, txID)
	if err != nil {
		return nil, err
	}
	tok, err := s.d.Resolver.Lookup(ctx, tx.Serial)
	if err != nil {
		return nil, otperr.ErrTransactionNotFound
	}
	tokType = string(tok.Type)
	owner = types.AuthContext{User: tok.User, Realm: tok.Realm}
	return s.answer(ctx, tok, tx.ID, pass)
}

// Pair procesa la respuesta de pairing de un token QR. Parear no autentica:
// el resultado lleva value=false y el serial pareado en el detalle.
func (s *Service) Pair(ctx context.Context, pairingResponse string) (*Response, error) {
	if strings.TrimSpace(pairingResponse) == "" {
		return nil, otperr.ErrUnsupportedParameters.WithDetail("pairing_response is required")
	}
	if s.d.QR == nil {
		return nil, otperr.ErrPairingError.WithDetail("qr tokens are not configured")
	}
	tok, err := s.d.QR.Pair(ctx, pairingResponse)
	if err != nil {
		audit.Log(ctx, audit.EventPair, map[string]any{"outcome": "failed"})
		return nil, err
	}
	audit.Log(ctx, audit.EventPair, map[string]any{"outcome": "paired", "serial": tok.Serial})
	return &Response{Value: false, Detail: Detail{Serial: tok.Serial}}, nil
}
