// Package tokens genera identificadores aleatorios: transaction ids, nonces
// y seriales de tokens.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TransactionIDDigits da ~66 bits de entropía.
const TransactionIDDigits = 20

// NumericID genera un id decimal de n dígitos sin cero inicial.
func NumericID(n int) (string, error) {
	if n < 2 {
		return "", fmt.Errorf("numeric id: n must be >= 2")
	}
	var sb strings.Builder
	first, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		return "", err
	}
	sb.WriteByte(byte('1' + first.Int64()))
	rest, err := rand.Int(rand.Reader, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n-1)), nil))
	if err != nil {
		return "", err
	}
	s := rest.String()
	sb.WriteString(strings.Repeat("0", n-1-len(s)))
	sb.WriteString(s)
	return sb.String(), nil
}

// Serial genera un serial "<PREFIX><8 hex>" (ej: "OATH1a2b3c4d").
func Serial(prefix string) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}

// SHA256Hex devuelve sha256(input) en hexadecimal.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
