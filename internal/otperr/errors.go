// Package otperr define la taxonomía de errores del core OTP.
//
// Todos los errores son recuperables en el borde del orquestador: cada uno
// se traduce a result.value=false más un mensaje. Los mensajes de
// AmbiguousToken, TokenNotFound, UnsupportedParameters y PolicyDenied son
// contrato con los clientes y no deben cambiar.
package otperr

import (
	"errors"
	"fmt"
)

// Kind clasifica un error del dominio.
type Kind string

const (
	KindAmbiguousToken             Kind = "AMBIGUOUS_TOKEN"
	KindTokenNotFound              Kind = "TOKEN_NOT_FOUND"
	KindTokenExists                Kind = "TOKEN_EXISTS"
	KindUnsupportedParameters      Kind = "UNSUPPORTED_PARAMETERS"
	KindPolicyDenied               Kind = "POLICY_DENIED"
	KindTransactionNotFound        Kind = "TRANSACTION_NOT_FOUND"
	KindTransactionExpired         Kind = "TRANSACTION_EXPIRED"
	KindTransactionAlreadyConsumed Kind = "TRANSACTION_ALREADY_CONSUMED"
	KindInvalidOtp                 Kind = "INVALID_OTP"
	KindPairingError               Kind = "PAIRING_ERROR"
	KindDeliveryFailure            Kind = "DELIVERY_FAILURE"
	KindInternal                   Kind = "INTERNAL"
)

// Error es el error estándar del core.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error // causa, solo para logs
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Kind, así errors.Is(err, ErrInvalidOtp) funciona con copias.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithDetail devuelve una COPIA con detalle adicional.
func (e *Error) WithDetail(detail string) *Error {
	n := *e
	n.Detail = detail
	return &n
}

// WithCause devuelve una COPIA con la causa original.
func (e *Error) WithCause(err error) *Error {
	n := *e
	n.Err = err
	return &n
}

// New crea un error de un kind arbitrario.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// As extrae el *Error de la cadena. Errores ajenos se convierten en INTERNAL.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// KindOf retorna el Kind de err, o KindInternal si no es del dominio.
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return ""
}

// IsOutcome indica si el kind es un resultado de verificación (la request se
// procesó bien pero la respuesta no fue aceptada) y no un rechazo de la request.
func IsOutcome(k Kind) bool {
	switch k {
	case KindInvalidOtp, KindTransactionNotFound, KindTransactionExpired, KindTransactionAlreadyConsumed:
		return true
	}
	return false
}

// --- Resolución de tokens ---

var (
	ErrAmbiguousToken = New(KindAmbiguousToken, "multiple tokens found!")
	ErrTokenNotFound  = New(KindTokenNotFound, "no token found!")
	ErrTokenExists    = New(KindTokenExists, "token already exists")
)

// --- Validación y autorización ---

var (
	ErrUnsupportedParameters = New(KindUnsupportedParameters, "unsupported parameters")
	ErrPolicyDenied          = New(KindPolicyDenied, "the policy settings do not allow this request")
)

// --- Transacciones (challenge-response) ---

var (
	ErrTransactionNotFound        = New(KindTransactionNotFound, "no transaction found")
	ErrTransactionExpired         = New(KindTransactionExpired, "transaction expired")
	ErrTransactionAlreadyConsumed = New(KindTransactionAlreadyConsumed, "transaction already consumed")
)

// --- Verificación ---

var (
	// ErrInvalidOtp es deliberadamente genérico: no indica qué elemento falló.
	ErrInvalidOtp   = New(KindInvalidOtp, "otp verification failed")
	ErrPairingError = New(KindPairingError, "pairing failed")
)

// --- Colaboradores ---

var (
	ErrDeliveryFailure = New(KindDeliveryFailure, "failed to deliver challenge")
	ErrInternal        = New(KindInternal, "internal error")
)
