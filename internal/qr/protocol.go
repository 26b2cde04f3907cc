package qr

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/subtle"
	"encoding/json"
	"strings"
	"time"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/metrics"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/security/tokens"
)

// Invitation es el contenido de la URL de pairing.
type Invitation struct {
	V           int    `json:"v"`
	Serial      string `json:"serial"`
	ServerPub   string `json:"server_pub"`
	SignPub     string `json:"sign_pub"`
	Nonce       string `json:"nonce"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type pairingInner struct {
	V         int    `json:"v"`
	Serial    string `json:"serial"`
	TokenID   string `json:"token_id"`
	DevicePub string `json:"device_pub"`
	Nonce     string `json:"nonce"`
	MAC       string `json:"mac"`
}

// Challenge es el payload firmado que viaja en la URL chal/.
type Challenge struct {
	V             int    `json:"v"`
	Serial        string `json:"serial"`
	TransactionID string `json:"transaction_id"`
	Nonce         string `json:"nonce"`
	Message       string `json:"message"`
	CallbackURL   string `json:"callback_url,omitempty"`
	IssuedAt      int64  `json:"issued_at"`
}

// Protocol es el lado server del token QR.
type Protocol struct {
	priv   []byte
	pub    []byte
	sign   ed25519.PrivateKey
	scheme string
	tokens repository.TokenRepository
	now    func() time.Time
}

// New arma el protocolo a partir de la clave X25519 del server.
func New(serverKey []byte, scheme string, tokens repository.TokenRepository) (*Protocol, error) {
	if len(serverKey) != 32 {
		return nil, ErrKeySize
	}
	pub, err := publicKey(serverKey)
	if err != nil {
		return nil, err
	}
	sign, err := signingKey(serverKey)
	if err != nil {
		return nil, err
	}
	if scheme == "" {
		scheme = "otpgate"
	}
	return &Protocol{priv: serverKey, pub: pub, sign: sign, scheme: scheme, tokens: tokens, now: time.Now}, nil
}

// PublicKey X25519 del server.
func (p *Protocol) PublicKey() []byte { return append([]byte(nil), p.pub...) }

// SigningPublicKey Ed25519 con la que el device valida los challenges.
func (p *Protocol) SigningPublicKey() ed25519.PublicKey {
	return p.sign.Public().(ed25519.PublicKey)
}

// NewPairingNonce genera el nonce que se guarda en el token al enrolar.
func NewPairingNonce() (string, error) {
	return tokens.GenerateOpaqueToken(16)
}

// PairingURL arma la invitación para un token Unpaired.
func (p *Protocol) PairingURL(tok *repository.Token, callbackURL string) (string, error) {
	inv := Invitation{
		V:           Version,
		Serial:      tok.Serial,
		ServerPub:   b64.EncodeToString(p.pub),
		SignPub:     b64.EncodeToString(p.SigningPublicKey()),
		Nonce:       tok.Pairing.Nonce,
		CallbackURL: callbackURL,
	}
	raw, err := json.Marshal(inv)
	if err != nil {
		return "", err
	}
	return p.scheme + "://pair/" + b64.EncodeToString(raw), nil
}

// Pair valida una respuesta de pairing y deja el token Paired. Toda falla es
// PairingError y no cambia estado.
func (p *Protocol) Pair(ctx context.Context, response string) (*repository.Token, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("qr.pair"))

	tok, err := p.pair(ctx, response)
	if err != nil {
		metrics.Pairing("failed")
		log.Info("pairing rejected", logger.Err(err))
		return nil, otperr.ErrPairingError.WithCause(err)
	}
	metrics.Pairing("ok")
	log.Info("token paired", logger.Serial(tok.Serial))
	return tok, nil
}

func (p *Protocol) pair(ctx context.Context, response string) (*repository.Token, error) {
	raw, err := openEnvelope(p.priv, response)
	if err != nil {
		return nil, err
	}
	var in pairingInner
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, ErrEncoding
	}
	if in.V != Version || in.Serial == "" || in.TokenID == "" {
		return nil, ErrEncoding
	}
	devicePub, err := b64.DecodeString(in.DevicePub)
	if err != nil || len(devicePub) != 32 {
		return nil, ErrEncoding
	}
	mac, err := b64.DecodeString(in.MAC)
	if err != nil {
		return nil, ErrEncoding
	}

	tok, err := p.tokens.Get(ctx, in.Serial)
	if err != nil {
		return nil, err
	}
	if tok.Type != repository.TokenQR || !tok.Active {
		return nil, errNotPairable
	}
	if tok.Pairing.State != repository.PairingUnpaired {
		return nil, errAlreadyPaired
	}
	if subtle.ConstantTimeCompare([]byte(in.Nonce), []byte(tok.Pairing.Nonce)) != 1 {
		return nil, errNonce
	}
	k, err := tokenKey(p.priv, devicePub, tok.Serial)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(mac, pairingMAC(k, tok.Serial, in.TokenID, in.Nonce)) {
		return nil, errMAC
	}

	ok, err := p.tokens.SetPaired(ctx, tok.Serial, tok.Pairing.Nonce, devicePub, in.TokenID, p.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errAlreadyPaired
	}
	return p.tokens.Get(ctx, tok.Serial)
}

// BuildChallenge arma y firma el challenge de una transacción. Retorna el
// payload (base64url del JSON firmado), el nonce y la URL para el device.
func (p *Protocol) BuildChallenge(tok *repository.Token, txID, message, callbackURL string) (payload, nonce, url string, err error) {
	if tok.Pairing.State != repository.PairingPaired {
		return "", "", "", otperr.ErrPairingError.WithDetail("token is not paired")
	}
	nonce, err = tokens.GenerateOpaqueToken(16)
	if err != nil {
		return "", "", "", err
	}
	raw, err := json.Marshal(Challenge{
		V:             Version,
		Serial:        tok.Serial,
		TransactionID: txID,
		Nonce:         nonce,
		Message:       message,
		CallbackURL:   callbackURL,
		IssuedAt:      p.now().Unix(),
	})
	if err != nil {
		return "", "", "", err
	}
	sig := ed25519.Sign(p.sign, raw)
	payload = b64.EncodeToString(raw)
	url = p.scheme + "://chal/" + payload + "." + b64.EncodeToString(sig)
	return payload, nonce, url, nil
}

// CheckResponse acepta la firma base64url o el TAN de 8 dígitos. Ambas
// formas se recalculan sobre el mismo payload.
func (p *Protocol) CheckResponse(tok *repository.Token, tx *repository.Transaction, answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" || tok.Pairing.State != repository.PairingPaired || tx.Serial != tok.Serial {
		return false
	}
	payload, err := b64.DecodeString(tx.Payload)
	if err != nil {
		return false
	}
	k, err := tokenKey(p.priv, tok.Pairing.DevicePublicKey, tok.Serial)
	if err != nil {
		return false
	}
	expected := responseSig(k, payload)

	if len(answer) == TANDigits && isDigits(answer) {
		return subtle.ConstantTimeCompare([]byte(answer), []byte(tanFromSig(expected))) == 1
	}
	got, err := b64.DecodeString(answer)
	if err != nil {
		return false
	}
	return hmac.Equal(got, expected)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
