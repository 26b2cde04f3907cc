package qr

import (
	"crypto/ed25519"
	"encoding/json"
	"strings"
)

// Device es el lado cliente del token QR. Lo usan los tests y otpctl; el
// estado es serializable a JSON.
type Device struct {
	Serial    string `json:"serial"`
	TokenID   string `json:"token_id"`
	Nonce     string `json:"nonce"`
	Priv      []byte `json:"priv"`
	ServerPub []byte `json:"server_pub"`
	SignPub   []byte `json:"sign_pub"`
}

// Answer es lo que el device calcula para un challenge.
type Answer struct {
	TransactionID string
	Message       string
	Signature     string
	TAN           string
}

// ParsePairingURL decodifica <scheme>://pair/<payload>.
func ParsePairingURL(u string) (*Invitation, error) {
	_, data, ok := strings.Cut(strings.TrimSpace(u), "://pair/")
	if !ok {
		return nil, ErrEncoding
	}
	raw, err := b64.DecodeString(data)
	if err != nil {
		return nil, ErrEncoding
	}
	var inv Invitation
	if err := json.Unmarshal(raw, &inv); err != nil || inv.V != Version || inv.Serial == "" {
		return nil, ErrEncoding
	}
	return &inv, nil
}

// NewDevice genera el par de claves del device para una invitación.
func NewDevice(inv *Invitation, tokenID string) (*Device, error) {
	serverPub, err := b64.DecodeString(inv.ServerPub)
	if err != nil || len(serverPub) != 32 {
		return nil, ErrEncoding
	}
	signPub, err := b64.DecodeString(inv.SignPub)
	if err != nil || len(signPub) != ed25519.PublicKeySize {
		return nil, ErrEncoding
	}
	priv, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Device{
		Serial:    inv.Serial,
		TokenID:   tokenID,
		Nonce:     inv.Nonce,
		Priv:      priv,
		ServerPub: serverPub,
		SignPub:   signPub,
	}, nil
}

// PairingResponse arma la respuesta cifrada para el server.
func (d *Device) PairingResponse() (string, error) {
	pub, err := publicKey(d.Priv)
	if err != nil {
		return "", err
	}
	k, err := tokenKey(d.Priv, d.ServerPub, d.Serial)
	if err != nil {
		return "", err
	}
	inner, err := json.Marshal(pairingInner{
		V:         Version,
		Serial:    d.Serial,
		TokenID:   d.TokenID,
		DevicePub: b64.EncodeToString(pub),
		Nonce:     d.Nonce,
		MAC:       b64.EncodeToString(pairingMAC(k, d.Serial, d.TokenID, d.Nonce)),
	})
	if err != nil {
		return "", err
	}
	return sealEnvelope(d.ServerPub, inner)
}

// Answer valida la firma del server sobre el challenge y calcula firma y TAN.
func (d *Device) Answer(challengeURL string) (*Answer, error) {
	_, data, ok := strings.Cut(strings.TrimSpace(challengeURL), "://chal/")
	if !ok {
		return nil, ErrEncoding
	}
	payloadB64, sigB64, ok := strings.Cut(data, ".")
	if !ok {
		return nil, ErrEncoding
	}
	payload, err := b64.DecodeString(payloadB64)
	if err != nil {
		return nil, ErrEncoding
	}
	sig, err := b64.DecodeString(sigB64)
	if err != nil {
		return nil, ErrEncoding
	}
	if !ed25519.Verify(ed25519.PublicKey(d.SignPub), payload, sig) {
		return nil, errSignature
	}
	var ch Challenge
	if err := json.Unmarshal(payload, &ch); err != nil {
		return nil, ErrEncoding
	}
	if ch.Serial != d.Serial {
		return nil, errSignature
	}
	k, err := tokenKey(d.Priv, d.ServerPub, d.Serial)
	if err != nil {
		return nil, err
	}
	resp := responseSig(k, payload)
	return &Answer{
		TransactionID: ch.TransactionID,
		Message:       ch.Message,
		Signature:     b64.EncodeToString(resp),
		TAN:           tanFromSig(resp),
	}, nil
}
