// Package reply escribe el sobre JSON de todas las respuestas:
//
//	{"version": "...", "id": "<request id>",
//	 "result": {"status": bool, "value": any, "error": {"code", "message"}},
//	 "detail": {...}}
//
// Los errores de dominio se responden con HTTP 200: el resultado está en
// result. Solo los errores de transporte (auth, método, rate) y los internos
// usan otro status.
package reply

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/otperr"
)

// Version se reporta en cada respuesta.
var Version = "otpgate"

type Envelope struct {
	Version string `json:"version"`
	ID      string `json:"id,omitempty"`
	Result  Result `json:"result"`
	Detail  any    `json:"detail,omitempty"`
}

type Result struct {
	Status bool       `json:"status"`
	Value  any        `json:"value"`
	Error  *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func requestID(w http.ResponseWriter) string {
	return w.Header().Get("X-Request-ID")
}

func write(w http.ResponseWriter, status int, env Envelope) {
	env.Version = Version
	env.ID = requestID(w)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// WriteValue responde un request procesado.
func WriteValue(w http.ResponseWriter, value any, detail any) {
	write(w, http.StatusOK, Envelope{Result: Result{Status: true, Value: value}, Detail: detail})
}

// WriteError traduce un error del core. Los resultados de verificación
// (InvalidOtp, transacción inexistente/expirada/consumida) se reportan con
// status=true; el resto con status=false.
func WriteError(w http.ResponseWriter, r *http.Request, err error, detail any) {
	e := otperr.As(err)
	status := http.StatusOK
	if e.Kind == otperr.KindInternal {
		status = http.StatusInternalServerError
		logger.From(r.Context()).Error("internal error", logger.Err(err))
	}
	write(w, status, Envelope{
		Result: Result{
			Status: otperr.IsOutcome(e.Kind),
			Value:  false,
			Error:  &ErrorBody{Code: string(e.Kind), Message: e.Message},
		},
		Detail: detail,
	})
}

// WriteHTTPError responde un rechazo de transporte (401, 405, 413, 429...).
func WriteHTTPError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Envelope{Result: Result{Status: false, Value: false, Error: &ErrorBody{Code: code, Message: message}}})
}

// Errores de transporte.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeInternal         = "INTERNAL"
)
