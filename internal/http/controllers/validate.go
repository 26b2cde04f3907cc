package controllers

import (
	"net/http"

	"github.com/dropDatabas3/otpgate/internal/http/reply"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/verify"
)

// Validate maneja /validate/*: sin sesión, el token se identifica por
// serial o por transaction id.
type Validate struct {
	svc *verify.Service
}

func NewValidate(svc *verify.Service) *Validate {
	return &Validate{svc: svc}
}

// CheckSerial maneja /validate/check_s (serial + pass = pin+otp).
func (c *Validate) CheckSerial(w http.ResponseWriter, r *http.Request) {
	p, ok := params(w, r)
	if !ok {
		return
	}
	serial := take(p, "serial")
	if serial == "" {
		reply.WriteError(w, r, otperr.ErrUnsupportedParameters.WithDetail("serial is required"), nil)
		return
	}
	resp, err := c.svc.CheckSerial(r.Context(), serial, p["pass"])
	writeVerify(w, r, resp, err)
}

// CheckTransaction maneja /validate/check_t (transactionid + pass).
func (c *Validate) CheckTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := params(w, r)
	if !ok {
		return
	}
	txID := take(p, "transactionid")
	if txID == "" {
		reply.WriteError(w, r, otperr.ErrUnsupportedParameters.WithDetail("transactionid is required"), nil)
		return
	}
	resp, err := c.svc.CheckTransaction(r.Context(), txID, p["pass"])
	writeVerify(w, r, resp, err)
}

// Pair maneja /validate/pair con la respuesta de pairing del dispositivo.
func (c *Validate) Pair(w http.ResponseWriter, r *http.Request) {
	p, ok := params(w, r)
	if !ok {
		return
	}
	pr := take(p, "pairing_response")
	if pr == "" {
		reply.WriteError(w, r, otperr.ErrUnsupportedParameters.WithDetail("pairing_response is required"), nil)
		return
	}
	resp, err := c.svc.Pair(r.Context(), pr)
	writeVerify(w, r, resp, err)
}
