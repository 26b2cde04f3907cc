// Package totp implementa TOTP (RFC 6238) delegando en hotp: el contador es
// floor(unix / step) contado desde 1970-01-01T00:00:00Z.
package totp

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dropDatabas3/otpgate/internal/security/hotp"
)

const (
	DefaultStep   = 30
	DefaultWindow = 1
)

// StepAt retorna el time-step que contiene t.
func StepAt(t time.Time, step int) int64 {
	if step <= 0 {
		step = DefaultStep
	}
	u := t.Unix()
	if u < 0 {
		return 0
	}
	return u / int64(step)
}

// Generate calcula el OTP del step que contiene t.
func Generate(secret []byte, t time.Time, step, digits int) (string, error) {
	return hotp.Generate(secret, StepAt(t, step), digits)
}

// Verify acepta code en el step actual ±window. Los steps < nextAcceptable
// se ignoran (anti-replay): el caller persiste matched+1 tras un match.
func Verify(secret []byte, code string, now time.Time, step, digits, window int, nextAcceptable int64) (ok bool, matched int64) {
	if window < 0 {
		window = 0
	}
	cur := StepAt(now, step)
	start := cur - int64(window)
	end := cur + int64(window)
	if start < nextAcceptable {
		start = nextAcceptable
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		return false, 0
	}
	return hotp.Verify(secret, start, digits, code, int(end-start))
}

// OTPAuthURL construye otpauth://{hotp|totp}/... para apps autenticadoras.
// Para hotp se usa counter; para totp period.
func OTPAuthURL(kind, issuer, account, secretB32 string, digits, period int, counter int64) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, account))
	q := url.Values{}
	q.Set("secret", secretB32)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", strconv.Itoa(digits))
	if kind == "hotp" {
		q.Set("counter", strconv.FormatInt(counter, 10))
	} else {
		kind = "totp"
		q.Set("period", strconv.Itoa(period))
	}
	return fmt.Sprintf("otpauth://%s/%s?%s", kind, label, q.Encode())
}
