package verify

import (
	"strings"

	"github.com/dropDatabas3/otpgate/internal/otperr"
)

// Nombres de parámetros aceptados por verify.
const (
	ParamSerial        = "serial"
	ParamOTP           = "otp"
	ParamPass          = "pass"
	ParamTransactionID = "transactionid"
)

// Request es el set de parámetros ya validado.
type Request struct {
	Serial        string
	OTP           string
	TransactionID string
}

// HasOTP indica si la request trae una respuesta.
func (r Request) HasOTP() bool { return r.OTP != "" }

// ParseParams valida el set antes de cualquier acceso a policy o store.
// Reglas: solo serial/otp/pass/transactionid; otp y pass son sinónimos y no
// pueden venir juntos; transactionid exige otp; sin transactionid se exige
// serial. Valores vacíos cuentan como ausentes.
func ParseParams(params map[string]string) (Request, error) {
	var req Request
	var sawOTP, sawPass bool
	for k, v := range params {
		v = strings.TrimSpace(v)
		switch k {
		case ParamSerial:
			req.Serial = v
		case ParamOTP:
			sawOTP = v != ""
			if sawOTP {
				req.OTP = v
			}
		case ParamPass:
			sawPass = v != ""
			if sawPass {
				req.OTP = v
			}
		case ParamTransactionID:
			req.TransactionID = v
		default:
			return Request{}, otperr.ErrUnsupportedParameters.WithDetail("unknown parameter " + k)
		}
	}
	switch {
	case sawOTP && sawPass:
		return Request{}, otperr.ErrUnsupportedParameters.WithDetail("otp and pass are exclusive")
	case req.TransactionID != "" && req.OTP == "":
		return Request{}, otperr.ErrUnsupportedParameters.WithDetail("transactionid requires otp")
	case req.TransactionID == "" && req.Serial == "":
		return Request{}, otperr.ErrUnsupportedParameters.WithDetail("serial is required")
	}
	return req, nil
}
