package controllers

import (
	"net/http"

	"github.com/dropDatabas3/otpgate/internal/enroll"
	"github.com/dropDatabas3/otpgate/internal/http/middlewares"
	"github.com/dropDatabas3/otpgate/internal/http/reply"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/verify"
)

// UserService maneja /userservice/*: el caller viene del bearer token.
type UserService struct {
	verify *verify.Service
	enroll *enroll.Service
}

func NewUserService(v *verify.Service, e *enroll.Service) *UserService {
	return &UserService{verify: v, enroll: e}
}

// Verify maneja POST /userservice/verify
func (c *UserService) Verify(w http.ResponseWriter, r *http.Request) {
	auth, ok := middlewares.GetAuth(r.Context())
	if !ok {
		reply.WriteHTTPError(w, http.StatusUnauthorized, reply.CodeUnauthorized, "authentication required")
		return
	}
	p, ok := params(w, r)
	if !ok {
		return
	}
	resp, err := c.verify.Verify(r.Context(), p, auth)
	writeVerify(w, r, resp, err)
}

// Enroll maneja POST /userservice/enroll
func (c *UserService) Enroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("UserService.Enroll"))

	auth, ok := middlewares.GetAuth(ctx)
	if !ok {
		reply.WriteHTTPError(w, http.StatusUnauthorized, reply.CodeUnauthorized, "authentication required")
		return
	}
	p, ok := params(w, r)
	if !ok {
		return
	}
	req, err := enroll.FromParams(p)
	if err != nil {
		reply.WriteError(w, r, err, nil)
		return
	}
	res, err := c.enroll.Enroll(ctx, req, auth, true)
	if err != nil {
		log.Info("enroll failed", logger.Err(err))
		reply.WriteError(w, r, err, nil)
		return
	}
	reply.WriteValue(w, true, toEnrollDetail(res))
}

type enrollDTO struct {
	Serial     string `json:"serial"`
	Type       string `json:"type"`
	OTPKey     string `json:"otpkey,omitempty"`
	OTPAuthURL string `json:"googleurl,omitempty"`
	PairingURL string `json:"pairing_url,omitempty"`
}

func toEnrollDetail(res *enroll.Result) enrollDTO {
	return enrollDTO{
		Serial:     res.Serial,
		Type:       string(res.Type),
		OTPKey:     res.OTPKey,
		OTPAuthURL: res.OTPAuthURL,
		PairingURL: res.PairingURL,
	}
}
