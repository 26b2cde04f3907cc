// Package qr implementa el token QR: pairing con intercambio X25519 y
// challenges firmados que se responden con firma HMAC o TAN.
package qr

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	Version = 1

	// TANDigits del TAN derivado de la firma.
	TANDigits = 8

	infoSigning  = "otpgate qr signing"
	infoToken    = "otpgate qr token"
	infoEnvelope = "otpgate qr envelope"
)

var (
	ErrKeySize  = errors.New("qr: key must be 32 bytes")
	ErrEncoding = errors.New("qr: malformed encoding")
	ErrEnvelope = errors.New("qr: envelope authentication failed")
)

var b64 = base64.RawURLEncoding

// GenerateKey retorna una clave privada X25519 aleatoria.
func GenerateKey() ([]byte, error) {
	k := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, err
	}
	return k, nil
}

// ParseKey acepta base64 (std, raw o url).
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if k, err := enc.DecodeString(s); err == nil {
			if len(k) != curve25519.ScalarSize {
				return nil, ErrKeySize
			}
			return k, nil
		}
	}
	return nil, ErrEncoding
}

func publicKey(priv []byte) ([]byte, error) {
	return curve25519.X25519(priv, curve25519.Basepoint)
}

func signingKey(serverPriv []byte) (ed25519.PrivateKey, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, serverPriv, nil, []byte(infoSigning)), seed); err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// tokenKey deriva K, el secreto compartido entre server y device para un serial.
func tokenKey(priv, peerPub []byte, serial string) ([]byte, error) {
	shared, err := curve25519.X25519(priv, peerPub)
	if err != nil {
		return nil, err
	}
	k := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, []byte(serial), []byte(infoToken)), k); err != nil {
		return nil, err
	}
	return k, nil
}

func envelopeAEAD(priv, peerPub []byte) (cipherAEAD, error) {
	shared, err := curve25519.X25519(priv, peerPub)
	if err != nil {
		return nil, err
	}
	k := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(infoEnvelope)), k); err != nil {
		return nil, err
	}
	return chacha20poly1305.New(k)
}

type cipherAEAD interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// La clave efímera se usa una sola vez: nonce en cero.
func sealEnvelope(serverPub, inner []byte) (string, error) {
	ephPriv, err := GenerateKey()
	if err != nil {
		return "", err
	}
	ephPub, err := publicKey(ephPriv)
	if err != nil {
		return "", err
	}
	aead, err := envelopeAEAD(ephPriv, serverPub)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	out := append([]byte{}, ephPub...)
	out = aead.Seal(out, nonce, inner, ephPub)
	return b64.EncodeToString(out), nil
}

func openEnvelope(serverPriv []byte, s string) ([]byte, error) {
	raw, err := b64.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, ErrEncoding
	}
	if len(raw) < curve25519.PointSize+chacha20poly1305.Overhead {
		return nil, ErrEncoding
	}
	ephPub := raw[:curve25519.PointSize]
	aead, err := envelopeAEAD(serverPriv, ephPub)
	if err != nil {
		return nil, ErrEnvelope
	}
	nonce := make([]byte, aead.NonceSize())
	inner, err := aead.Open(nil, nonce, raw[curve25519.PointSize:], ephPub)
	if err != nil {
		return nil, ErrEnvelope
	}
	return inner, nil
}

func pairingMAC(k []byte, serial, tokenID, nonce string) []byte {
	m := hmac.New(sha256.New, k)
	fmt.Fprintf(m, "pair|%s|%s|%s", serial, tokenID, nonce)
	return m.Sum(nil)
}

func responseSig(k, payload []byte) []byte {
	m := hmac.New(sha256.New, k)
	m.Write(payload)
	return m.Sum(nil)
}

// tanFromSig aplica el truncado dinámico de HOTP sobre la firma.
func tanFromSig(sig []byte) string {
	off := int(sig[len(sig)-1] & 0x0f)
	bin := binary.BigEndian.Uint32(sig[off:off+4]) & 0x7fffffff
	return fmt.Sprintf("%0*d", TANDigits, bin%100_000_000)
}
