package verify

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/security/hotp"
	"github.com/dropDatabas3/otpgate/internal/security/secretbox"
	"github.com/dropDatabas3/otpgate/internal/security/totp"
)

// ErrCounterMoved es la causa de un InvalidOtp por CAS perdido: otro
// request aceptó el mismo valor primero.
var ErrCounterMoved = errors.New("counter moved concurrently")

// Engine verifica OTPs síncronos y avanza el contador con CAS.
type Engine struct {
	tokens     repository.TokenRepository
	box        *secretbox.Box
	hotpWindow int
	totpWindow int
	now        func() time.Time
}

type EngineConfig struct {
	HOTPWindow int
	TOTPWindow int
	Now        func() time.Time
}

func NewEngine(tokens repository.TokenRepository, box *secretbox.Box, cfg EngineConfig) *Engine {
	e := &Engine{tokens: tokens, box: box, hotpWindow: cfg.HOTPWindow, totpWindow: cfg.TOTPWindow, now: cfg.Now}
	if e.hotpWindow <= 0 {
		e.hotpWindow = hotp.DefaultWindow
	}
	if e.totpWindow <= 0 {
		e.totpWindow = totp.DefaultWindow
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func digitsOf(tok *repository.Token) int {
	if tok.Digits == 0 {
		return 6
	}
	return tok.Digits
}

func (e *Engine) secret(tok *repository.Token) ([]byte, error) {
	raw, err := e.box.Open(tok.SealedSecret, tok.Serial)
	if err != nil {
		return nil, otperr.ErrInternal.WithCause(err)
	}
	return raw, nil
}

// Check verifica un OTP directo. HMAC y SMS usan la secuencia HOTP; TOTP el
// contador sintético. Un CAS perdido es replay y se reporta como InvalidOtp.
func (e *Engine) Check(ctx context.Context, tok *repository.Token, candidate string) error {
	log := logger.From(ctx).With(logger.Layer("engine"), logger.Serial(tok.Serial))

	var ok bool
	var matched int64
	switch tok.Type {
	case repository.TokenHOTP, repository.TokenSMS:
		secret, err := e.secret(tok)
		if err != nil {
			return err
		}
		ok, matched = hotp.Verify(secret, tok.Counter, digitsOf(tok), candidate, e.hotpWindow)
	case repository.TokenTOTP:
		secret, err := e.secret(tok)
		if err != nil {
			return err
		}
		step := tok.TimeStep
		if step <= 0 {
			step = totp.DefaultStep
		}
		ok, matched = totp.Verify(secret, candidate, e.now(), step, digitsOf(tok), e.totpWindow, tok.Counter)
	default:
		return otperr.ErrInvalidOtp
	}
	if !ok {
		return otperr.ErrInvalidOtp
	}

	advanced, err := e.tokens.AdvanceCounter(ctx, tok.Serial, tok.Counter, matched+1)
	if err != nil {
		log.Error("advance counter failed", logger.Err(err))
		return otperr.ErrInternal.WithCause(err)
	}
	if !advanced {
		log.Warn("counter moved concurrently, otp rejected")
		return otperr.ErrInvalidOtp.WithCause(ErrCounterMoved)
	}
	tok.Counter = matched + 1
	return nil
}

// NextSMSOTP toma el próximo valor de la secuencia HOTP del token y lo
// consume, así el OTP enviado no puede usarse como OTP directo.
func (e *Engine) NextSMSOTP(ctx context.Context, tok *repository.Token) (string, error) {
	secret, err := e.secret(tok)
	if err != nil {
		return "", err
	}
	cur := tok
	for attempt := 0; attempt < 3; attempt++ {
		otp, err := hotp.Generate(secret, cur.Counter, digitsOf(cur))
		if err != nil {
			return "", otperr.ErrInternal.WithCause(err)
		}
		ok, err := e.tokens.AdvanceCounter(ctx, cur.Serial, cur.Counter, cur.Counter+1)
		if err != nil {
			return "", otperr.ErrInternal.WithCause(err)
		}
		if ok {
			tok.Counter = cur.Counter + 1
			return otp, nil
		}
		if cur, err = e.tokens.Get(ctx, tok.Serial); err != nil {
			return "", otperr.ErrInternal.WithCause(err)
		}
	}
	return "", otperr.ErrInternal.WithDetail("counter contention")
}
