// Package hotp implementa HOTP (RFC 4226): HMAC-SHA1 sobre el contador de
// 8 bytes big-endian, truncado dinámico y decimal de 6 u 8 dígitos.
package hotp

import (
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// DefaultWindow es la cantidad de contadores hacia adelante que se toleran.
const DefaultWindow = 10

var (
	ErrDigits  = errors.New("hotp: digits must be 6 or 8")
	ErrCounter = errors.New("hotp: negative counter")
	ErrSecret  = errors.New("hotp: empty secret")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generate calcula el OTP para (secret, counter).
func Generate(secret []byte, counter int64, digits int) (string, error) {
	if len(secret) == 0 {
		return "", ErrSecret
	}
	if counter < 0 {
		return "", ErrCounter
	}
	d, err := toDigits(digits)
	if err != nil {
		return "", err
	}
	return hotp.GenerateCodeCustom(b32.EncodeToString(secret), uint64(counter), hotp.ValidateOpts{
		Digits:    d,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// Verify busca candidate en [counter, counter+window], nunca hacia atrás.
// Si hay match retorna el contador usado; el caller debe persistir matched+1.
// La comparación es en tiempo constante por cada contador probado.
func Verify(secret []byte, counter int64, digits int, candidate string, window int) (ok bool, matched int64) {
	candidate = strings.TrimSpace(candidate)
	if len(candidate) != digits || counter < 0 || window < 0 {
		return false, 0
	}
	for c := counter; c <= counter+int64(window); c++ {
		code, err := Generate(secret, c, digits)
		if err != nil {
			return false, 0
		}
		if subtle.ConstantTimeCompare([]byte(code), []byte(candidate)) == 1 {
			return true, c
		}
	}
	return false, 0
}

func toDigits(n int) (otp.Digits, error) {
	switch n {
	case 6:
		return otp.DigitsSix, nil
	case 8:
		return otp.DigitsEight, nil
	}
	return 0, ErrDigits
}
