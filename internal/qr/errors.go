package qr

import "errors"

var (
	errNotPairable   = errors.New("qr: token cannot be paired")
	errAlreadyPaired = errors.New("qr: token already paired")
	errNonce         = errors.New("qr: pairing nonce mismatch")
	errMAC           = errors.New("qr: pairing mac mismatch")
	errSignature     = errors.New("qr: challenge signature invalid")
)
