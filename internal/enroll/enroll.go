// Package enroll crea tokens y produce el material que el usuario necesita
// (seed, URL otpauth, invitación de pairing QR).
package enroll

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/dropDatabas3/otpgate/internal/audit"
	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/policy"
	"github.com/dropDatabas3/otpgate/internal/qr"
	"github.com/dropDatabas3/otpgate/internal/security/pin"
	"github.com/dropDatabas3/otpgate/internal/security/secretbox"
	"github.com/dropDatabas3/otpgate/internal/security/tokens"
	"github.com/dropDatabas3/otpgate/internal/security/totp"
	"github.com/dropDatabas3/otpgate/internal/validation"
)

// SeedSize de los seeds generados (160 bits, como RFC 4226).
const SeedSize = 20

var serialPrefix = map[repository.TokenType]string{
	repository.TokenHOTP: "OATH",
	repository.TokenTOTP: "TOTP",
	repository.TokenSMS:  "SMS",
	repository.TokenQR:   "QR",
}

// Request de enrolamiento. OTPKey es el seed en hex; vacío genera uno.
type Request struct {
	Type        string
	Serial      string
	OTPKey      string
	Pin         string
	Phone       string
	Description string
	Digits      int
	TimeStep    int
}

// Result es lo que se devuelve una sola vez al enrolar.
type Result struct {
	Serial     string
	Type       repository.TokenType
	OTPKey     string // seed://<hex>
	OTPAuthURL string
	PairingURL string
}

type Deps struct {
	Tokens repository.TokenRepository
	Gate   *policy.Gate
	Box    *secretbox.Box
	QR     *qr.Protocol

	Issuer             string
	Digits             int
	TimeStep           int
	PinParams          pin.Params
	PairingCallbackURL string
}

type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	if d.Digits == 0 {
		d.Digits = 6
	}
	if d.TimeStep == 0 {
		d.TimeStep = totp.DefaultStep
	}
	if d.PinParams == (pin.Params{}) {
		d.PinParams = pin.Default
	}
	if d.Issuer == "" {
		d.Issuer = "otpgate"
	}
	return &Service{d: d}
}

// FromParams arma la Request desde parámetros de formulario.
func FromParams(p map[string]string) (Request, error) {
	req := Request{
		Type:        p["type"],
		Serial:      strings.TrimSpace(p["serial"]),
		OTPKey:      strings.TrimSpace(p["otpkey"]),
		Pin:         p["pin"],
		Phone:       strings.TrimSpace(p["phone"]),
		Description: p["description"],
	}
	for key, dst := range map[string]*int{"otplen": &req.Digits, "timeStep": &req.TimeStep} {
		if v := strings.TrimSpace(p[key]); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Request{}, otperr.ErrUnsupportedParameters.WithDetail("invalid " + key)
			}
			*dst = n
		}
	}
	return req, nil
}

// Enroll crea el token para owner. En self-service exige enroll<TYPE> en el
// scope selfservice.
func (s *Service) Enroll(ctx context.Context, req Request, owner types.AuthContext, selfservice bool) (*Result, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("enroll"), logger.User(owner.User), logger.Realm(owner.Realm))

	typ, ok := repository.ParseTokenType(req.Type)
	if !ok {
		return nil, otperr.ErrUnsupportedParameters.WithDetail("unknown token type")
	}
	if owner.User == "" {
		return nil, otperr.ErrUnsupportedParameters.WithDetail("user is required")
	}
	if selfservice {
		action := policy.ActionEnrollPrefix + strings.ToUpper(string(typ))
		if err := s.d.Gate.Authorize(ctx, policy.ScopeSelfservice, action, owner); err != nil {
			return nil, err
		}
	}

	digits := req.Digits
	if digits == 0 {
		digits = s.d.Digits
	}
	if digits != 6 && digits != 8 {
		return nil, otperr.ErrUnsupportedParameters.WithDetail("otplen must be 6 or 8")
	}

	tok := repository.Token{
		Serial:      req.Serial,
		Type:        typ,
		Digits:      digits,
		User:        owner.User,
		Realm:       owner.Realm,
		Phone:       req.Phone,
		Description: req.Description,
		Active:      true,
	}
	if tok.Serial != "" && !validation.ValidSerial(tok.Serial) {
		return nil, otperr.ErrUnsupportedParameters.WithDetail("invalid serial")
	}
	if tok.Serial == "" {
		serial, err := tokens.Serial(serialPrefix[typ])
		if err != nil {
			return nil, otperr.ErrInternal.WithCause(err)
		}
		tok.Serial = serial
	}
	if req.Pin != "" {
		h, err := pin.Hash(s.d.PinParams, req.Pin)
		if err != nil {
			return nil, otperr.ErrInternal.WithCause(err)
		}
		tok.PinHash = h
	}

	res := &Result{Serial: tok.Serial, Type: typ}
	switch typ {
	case repository.TokenHOTP, repository.TokenTOTP, repository.TokenSMS:
		if typ == repository.TokenSMS && tok.Phone == "" {
			return nil, otperr.ErrUnsupportedParameters.WithDetail("phone is required")
		}
		seed, err := s.seed(req.OTPKey)
		if err != nil {
			return nil, err
		}
		if tok.SealedSecret, err = s.d.Box.Seal(seed, tok.Serial); err != nil {
			return nil, otperr.ErrInternal.WithCause(err)
		}
		if typ == repository.TokenSMS {
			break
		}
		res.OTPKey = "seed://" + hex.EncodeToString(seed)
		b32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(seed)
		if typ == repository.TokenTOTP {
			tok.TimeStep = req.TimeStep
			if tok.TimeStep == 0 {
				tok.TimeStep = s.d.TimeStep
			}
			res.OTPAuthURL = totp.OTPAuthURL("totp", s.d.Issuer, owner.String(), b32, digits, tok.TimeStep, 0)
		} else {
			res.OTPAuthURL = totp.OTPAuthURL("hotp", s.d.Issuer, owner.String(), b32, digits, 0, 0)
		}
	case repository.TokenQR:
		if s.d.QR == nil {
			return nil, otperr.ErrPairingError.WithDetail("qr tokens are not configured")
		}
		nonce, err := qr.NewPairingNonce()
		if err != nil {
			return nil, otperr.ErrInternal.WithCause(err)
		}
		tok.Pairing = repository.Pairing{State: repository.PairingUnpaired, Nonce: nonce}
		callback := s.d.PairingCallbackURL
		if v, ok, err := s.d.Gate.Value(ctx, policy.ScopeAuthentication, policy.ActionQRPairingCallback, owner); err == nil && ok {
			callback = v
		}
		if res.PairingURL, err = s.d.QR.PairingURL(&tok, callback); err != nil {
			return nil, otperr.ErrInternal.WithCause(err)
		}
	}

	if err := s.d.Tokens.Create(ctx, tok); err != nil {
		if repository.IsConflict(err) {
			return nil, otperr.ErrTokenExists.WithDetail(tok.Serial)
		}
		log.Error("create token failed", logger.Err(err))
		return nil, otperr.ErrInternal.WithCause(err)
	}
	audit.Log(ctx, audit.EventEnroll, map[string]any{"serial": tok.Serial, "type": string(typ), "user": owner.String()})
	log.Info("token enrolled", logger.Serial(tok.Serial), logger.TokenType(string(typ)))
	return res, nil
}

func (s *Service) seed(otpkey string) ([]byte, error) {
	if otpkey != "" {
		b, err := hex.DecodeString(strings.TrimPrefix(otpkey, "seed://"))
		if err != nil || len(b) < 16 {
			return nil, otperr.ErrUnsupportedParameters.WithDetail("otpkey must be hex, at least 16 bytes")
		}
		return b, nil
	}
	b := make([]byte, SeedSize)
	if _, err := rand.Read(b); err != nil {
		return nil, otperr.ErrInternal.WithCause(err)
	}
	return b, nil
}
