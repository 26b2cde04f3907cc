package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dropDatabas3/otpgate/internal/audit"
	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/enroll"
	"github.com/dropDatabas3/otpgate/internal/http/reply"
	"github.com/dropDatabas3/otpgate/internal/observability/logger"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/policy"
)

// System maneja las rutas administrativas (/admin/init, /system/*).
// Van detrás de la API key de admin.
type System struct {
	gate         *policy.Gate
	enroll       *enroll.Service
	defaultRealm string
}

func NewSystem(gate *policy.Gate, e *enroll.Service, defaultRealm string) *System {
	return &System{gate: gate, enroll: e, defaultRealm: defaultRealm}
}

// Init maneja /admin/init: enrola un token para user@realm sin policy de
// self-service.
func (c *System) Init(w http.ResponseWriter, r *http.Request) {
	p, ok := params(w, r)
	if !ok {
		return
	}
	user := take(p, "user")
	realm := take(p, "realm")
	if user == "" {
		reply.WriteError(w, r, otperr.ErrUnsupportedParameters.WithDetail("user is required"), nil)
		return
	}
	owner := types.ParseLogin(user, c.defaultRealm)
	if realm != "" {
		owner = types.AuthContext{User: user, Realm: realm}
	}
	req, err := enroll.FromParams(p)
	if err != nil {
		reply.WriteError(w, r, err, nil)
		return
	}
	res, err := c.enroll.Enroll(r.Context(), req, owner, false)
	if err != nil {
		reply.WriteError(w, r, err, nil)
		return
	}
	reply.WriteValue(w, true, toEnrollDetail(res))
}

// SetPolicy maneja /system/setPolicy.
func (c *System) SetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("System.SetPolicy"))

	p, ok := params(w, r)
	if !ok {
		return
	}
	pol := repository.Policy{
		Name:   take(p, "name"),
		Scope:  take(p, "scope"),
		Action: p["action"],
		User:   take(p, "user"),
		Realm:  take(p, "realm"),
		Active: true,
	}
	if v := take(p, "active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			reply.WriteError(w, r, otperr.ErrUnsupportedParameters.WithDetail("invalid active"), nil)
			return
		}
		pol.Active = b
	}
	if err := c.gate.Set(ctx, pol); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			reply.WriteError(w, r, otperr.ErrUnsupportedParameters.WithDetail("name and scope are required"), nil)
			return
		}
		log.Error("set policy failed", logger.Err(err))
		reply.WriteError(w, r, err, nil)
		return
	}
	audit.Log(ctx, audit.EventPolicySet, map[string]any{"name": pol.Name, "scope": pol.Scope, "action": pol.Action, "active": pol.Active})
	reply.WriteValue(w, true, map[string]string{"name": pol.Name})
}

// DeletePolicy maneja /system/delPolicy. Borrar una política inexistente
// responde value=false.
func (c *System) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := params(w, r)
	if !ok {
		return
	}
	name := take(p, "name")
	if name == "" {
		reply.WriteError(w, r, otperr.ErrUnsupportedParameters.WithDetail("name is required"), nil)
		return
	}
	if err := c.gate.Delete(ctx, name); err != nil {
		if repository.IsNotFound(err) {
			reply.WriteValue(w, false, map[string]string{"name": name})
			return
		}
		reply.WriteError(w, r, err, nil)
		return
	}
	audit.Log(ctx, audit.EventPolicyDelete, map[string]any{"name": name})
	reply.WriteValue(w, true, map[string]string{"name": name})
}
