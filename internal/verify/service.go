// Package verify es el orquestador de verificación: valida parámetros,
// autoriza, resuelve el token y despacha según modalidad.
package verify

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/otpgate/internal/audit"
	"github.com/dropDatabas3/otpgate/internal/challenge"
	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/metrics"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/policy"
	"github.com/dropDatabas3/otpgate/internal/qr"
	"github.com/dropDatabas3/otpgate/internal/resolver"
	"github.com/dropDatabas3/otpgate/internal/sms"
)

// Reply modes.
const (
	ReplyOffline = "offline"
	ReplyOnline  = "online"
	ReplySMS     = "sms"
)

// Mensajes de trigger por defecto.
const (
	MessageEnterOTP     = "please enter otp"
	MessageSMSSubmitted = "sms submitted"
)

// Response es el resultado de una verificación procesada. Value solo es
// true cuando la verificación fue aceptada.
type Response struct {
	Value  bool
	Detail Detail
}

// Detail acompaña triggers y answers.
type Detail struct {
	Serial          string
	ReplyMode       []string
	TransactionID   string
	Message         string
	TransactionData string
}

// Deps agrupa los colaboradores del servicio.
type Deps struct {
	Gate       *policy.Gate
	Resolver   *resolver.Resolver
	Engine     *Engine
	Challenges *challenge.Manager
	QR         *qr.Protocol
	SMS        *sms.Registry

	SMSTemplate         string
	QRMessage           string
	QRChallengeCallback string
}

// Service implementa verify y los flujos /validate.
type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	if d.SMSTemplate == "" {
		d.SMSTemplate = "<otp> is your one-time password"
	}
	if d.QRMessage == "" {
		d.QRMessage = "please confirm the login"
	}
	return &Service{d: d}
}

// Verify es la entrada self-service. Parámetros y policy se chequean antes
// de tocar estado, en ese orden: un parámetro desconocido es
// UnsupportedParameters aunque el caller no tenga política.
func (s *Service) Verify(ctx context.Context, params map[string]string, auth types.AuthContext) (resp *Response, err error) {
	start := time.Now()
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("verify"), logger.User(auth.User), logger.Realm(auth.Realm))
	var tokType string
	defer func() { s.observe(ctx, "verify", tokType, auth, resp, err, start) }()

	req, err := ParseParams(params)
	if err != nil {
		log.Info("verify rejected", logger.Err(err))
		return nil, err
	}
	if err := s.d.Gate.Authorize(ctx, policy.ScopeSelfservice, policy.ActionVerify, auth); err != nil {
		log.Info("verify denied by policy")
		return nil, err
	}

	if req.TransactionID != "" {
		tok, tx, err := s.ownedTransaction(ctx, req, auth)
		if err != nil {
			return nil, err
		}
		tokType = string(tok.Type)
		return s.answer(ctx, tok, tx.ID, req.OTP)
	}

	tok, err := s.d.Resolver.Resolve(ctx, req.Serial, auth)
	if err != nil {
		return nil, err
	}
	tokType = string(tok.Type)
	if req.HasOTP() {
		if err := s.direct(ctx, tok, req.OTP); err != nil {
			return nil, err
		}
		return &Response{Value: true, Detail: Detail{Serial: tok.Serial}}, nil
	}
	return s.trigger(ctx, tok, auth)
}

// ownedTransaction lee la transacción y su token, y exige que el token sea
// del caller (y coincida con serial si vino). Si no, es como si no existiera.
func (s *Service) ownedTransaction(ctx context.Context, req Request, auth types.AuthContext) (*repository.Token, *repository.Transaction, error) {
	tx, err := s.d.Challenges.Peek(ctx, req.TransactionID)
	if err != nil {
		return nil, nil, err
	}
	tok, err := s.d.Resolver.Lookup(ctx, tx.Serial)
	if err != nil {
		return nil, nil, otperr.ErrTransactionNotFound
	}
	if tok.User != auth.User || tok.Realm != auth.Realm {
		return nil, nil, otperr.ErrTransactionNotFound
	}
	if req.Serial != "" && len(resolver.Match([]repository.Token{*tok}, req.Serial)) != 1 {
		return nil, nil, otperr.ErrTransactionNotFound
	}
	return tok, tx, nil
}

func (s *Service) direct(ctx context.Context, tok *repository.Token, otp string) error {
	switch tok.Type {
	case repository.TokenHOTP, repository.TokenTOTP, repository.TokenSMS:
		return s.d.Engine.Check(ctx, tok, otp)
	default:
		// QR no tiene OTP directo: solo responde challenges.
		return otperr.ErrInvalidOtp
	}
}

// trigger crea una transacción para cualquier modalidad y entrega el
// challenge. Una falla de entrega no deshace la transacción.
func (s *Service) trigger(ctx context.Context, tok *repository.Token, auth types.AuthContext) (*Response, error) {
	log := logger.From(ctx).With(logger.Op("verify.trigger"), logger.Serial(tok.Serial))
	detail := Detail{Serial: tok.Serial}

	var build challenge.PayloadBuilder
	var smsText string
	switch tok.Type {
	case repository.TokenHOTP, repository.TokenTOTP:
		detail.ReplyMode = []string{ReplyOffline}
		build = func(context.Context, string) (challenge.Payload, error) {
			return challenge.Payload{Message: MessageEnterOTP}, nil
		}
	case repository.TokenSMS:
		detail.ReplyMode = []string{ReplySMS}
		build = func(ctx context.Context, txID string) (challenge.Payload, error) {
			otp, err := s.d.Engine.NextSMSOTP(ctx, tok)
			if err != nil {
				return challenge.Payload{}, err
			}
			smsText = sms.Render(s.d.SMSTemplate, otp)
			return challenge.Payload{Message: MessageSMSSubmitted, OTPHash: challenge.HashOTP(txID, otp)}, nil
		}
	case repository.TokenQR:
		callback, err := s.policyValue(ctx, policy.ActionQRChallengeCallback, auth, s.d.QRChallengeCallback)
		if err != nil {
			return nil, err
		}
		detail.ReplyMode = []string{ReplyOffline}
		if callback != "" {
			detail.ReplyMode = append(detail.ReplyMode, ReplyOnline)
		}
		build = func(_ context.Context, txID string) (challenge.Payload, error) {
			payload, nonce, url, err := s.d.QR.BuildChallenge(tok, txID, s.d.QRMessage, callback)
			if err != nil {
				return challenge.Payload{}, err
			}
			detail.TransactionData = url
			return challenge.Payload{Message: s.d.QRMessage, Payload: payload, Nonce: nonce}, nil
		}
	default:
		return nil, otperr.ErrInternal.WithDetail("unknown token type " + string(tok.Type))
	}

	tx, err := s.d.Challenges.Create(ctx, tok, build)
	if err != nil {
		return nil, err
	}
	detail.TransactionID = tx.ID
	detail.Message = tx.Message
	resp := &Response{Value: false, Detail: detail}

	if tok.Type == repository.TokenSMS {
		provider, err := s.policyValue(ctx, policy.ActionSMSProvider, auth, "")
		if err != nil {
			return resp, err
		}
		if err := s.d.SMS.Deliver(ctx, provider, tok.Phone, smsText); err != nil {
			log.Warn("challenge created but not delivered", logger.TransactionID(tx.ID))
			return resp, err
		}
	}
	audit.Log(ctx, audit.EventChallenge, map[string]any{"serial": tok.Serial, "transaction_id": tx.ID, "type": string(tok.Type)})
	return resp, nil
}

// answer responde la transacción con el validador de la modalidad.
func (s *Service) answer(ctx context.Context, tok *repository.Token, txID, response string) (*Response, error) {
	validate := func(ctx context.Context, tx *repository.Transaction) error {
		switch tok.Type {
		case repository.TokenSMS:
			if challenge.MatchOTP(tx, response) {
				return nil
			}
			return otperr.ErrInvalidOtp
		case repository.TokenQR:
			if s.d.QR != nil && s.d.QR.CheckResponse(tok, tx, response) {
				return nil
			}
			return otperr.ErrInvalidOtp
		default:
			// Un CAS perdido acá es otra respuesta a la misma transacción.
			err := s.d.Engine.Check(ctx, tok, response)
			if errors.Is(err, ErrCounterMoved) {
				return otperr.ErrTransactionAlreadyConsumed
			}
			return err
		}
	}
	tx, err := s.d.Challenges.Answer(ctx, txID, validate)
	if err != nil {
		return nil, err
	}
	return &Response{Value: true, Detail: Detail{Serial: tok.Serial, TransactionID: tx.ID}}, nil
}

// policyValue lee una acción parametrizada del scope authentication; sin
// política que la defina se usa el fallback.
func (s *Service) policyValue(ctx context.Context, action string, auth types.AuthContext, fallback string) (string, error) {
	if auth.IsZero() {
		return fallback, nil
	}
	v, ok, err := s.d.Gate.Value(ctx, policy.ScopeAuthentication, action, auth)
	if err != nil {
		return "", otperr.ErrPolicyDenied.WithCause(err)
	}
	if !ok {
		return fallback, nil
	}
	return v, nil
}

func (s *Service) observe(ctx context.Context, flow, tokType string, auth types.AuthContext, resp *Response, err error, start time.Time) {
	outcome := "accepted"
	switch {
	case err != nil:
		outcome = string(otperr.KindOf(err))
	case resp != nil && !resp.Value:
		outcome = "challenge"
	}
	if tokType == "" {
		tokType = "none"
	}
	metrics.ObserveVerify(flow, tokType, outcome, time.Since(start))

	fields := map[string]any{"flow": flow, "outcome": outcome, "type": tokType}
	if !auth.IsZero() {
		fields["user"] = auth.String()
	}
	if resp != nil {
		if resp.Detail.Serial != "" {
			fields["serial"] = resp.Detail.Serial
		}
		if resp.Detail.TransactionID != "" {
			fields["transaction_id"] = resp.Detail.TransactionID
		}
	}
	audit.Log(ctx, audit.EventVerify, fields)
}
