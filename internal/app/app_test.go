package app

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/config"
	"github.com/dropDatabas3/otpgate/internal/qr"
	"github.com/dropDatabas3/otpgate/internal/security/hotp"
	_ "github.com/dropDatabas3/otpgate/internal/store/adapters/memory"
)

const (
	adminKey = "admin-key-for-tests"
	seedHex  = "3132333435363738393031323334353637383930"
)

type envelope struct {
	Result struct {
		Status bool `json:"status"`
		Value  any  `json:"value"`
		Error  *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"result"`
	Detail map[string]any `json:"detail"`
}

func newTestApp(t *testing.T, mutate func(*config.Config)) (*App, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.AdminAPIKey = adminKey
	cfg.Auth.JWT.Secret = "jwt-secret-for-tests-0123456789"
	if mutate != nil {
		mutate(cfg)
	}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return a, srv
}

func post(t *testing.T, srv *httptest.Server, path string, form url.Values, hdr map[string]string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

func admin(t *testing.T, srv *httptest.Server, path string, form url.Values) envelope {
	t.Helper()
	code, env := post(t, srv, path, form, map[string]string{"X-Admin-API-Key": adminKey})
	require.Equal(t, http.StatusOK, code)
	return env
}

func hotpAt(t *testing.T, counter int64) string {
	t.Helper()
	seed, err := hex.DecodeString(seedHex)
	require.NoError(t, err)
	otp, err := hotp.Generate(seed, counter, 6)
	require.NoError(t, err)
	return otp
}

func TestSelfServiceVerifyOverHTTP(t *testing.T) {
	a, srv := newTestApp(t, nil)

	env := admin(t, srv, "/admin/init", url.Values{"user": {"alice"}, "type": {"hmac"}, "serial": {"OATH0001"}, "otpkey": {seedHex}})
	require.Equal(t, true, env.Result.Value)
	require.Equal(t, "OATH0001", env.Detail["serial"])

	bearer, err := a.JWT.Issue("alice", "", time.Minute)
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + bearer}

	// sin política: denegado antes de tocar el token
	_, env = post(t, srv, "/userservice/verify", url.Values{"serial": {"OATH0001"}, "otp": {hotpAt(t, 0)}}, auth)
	require.False(t, env.Result.Status)
	require.Equal(t, "POLICY_DENIED", env.Result.Error.Code)

	admin(t, srv, "/system/setPolicy", url.Values{"name": {"self"}, "scope": {"selfservice"}, "action": {"verify"}})

	_, env = post(t, srv, "/userservice/verify", url.Values{"serial": {"OATH*"}, "otp": {hotpAt(t, 0)}}, auth)
	require.True(t, env.Result.Status)
	require.Equal(t, true, env.Result.Value)

	// replay
	_, env = post(t, srv, "/userservice/verify", url.Values{"serial": {"OATH0001"}, "otp": {hotpAt(t, 0)}}, auth)
	require.True(t, env.Result.Status)
	require.Equal(t, false, env.Result.Value)
	require.Equal(t, "INVALID_OTP", env.Result.Error.Code)

	// parámetro desconocido
	_, env = post(t, srv, "/userservice/verify", url.Values{"serial": {"OATH0001"}, "foo": {"bar"}}, auth)
	require.False(t, env.Result.Status)
	require.Equal(t, "unsupported parameters", env.Result.Error.Message)

	env = admin(t, srv, "/system/delPolicy", url.Values{"name": {"self"}})
	require.Equal(t, true, env.Result.Value)
	env = admin(t, srv, "/system/delPolicy", url.Values{"name": {"self"}})
	require.Equal(t, false, env.Result.Value)
}

func TestUserServiceRequiresBearer(t *testing.T) {
	_, srv := newTestApp(t, nil)

	code, env := post(t, srv, "/userservice/verify", url.Values{"serial": {"X"}}, nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "UNAUTHORIZED", env.Result.Error.Code)

	code, _ = post(t, srv, "/userservice/verify", url.Values{"serial": {"X"}}, map[string]string{"Authorization": "Bearer nope"})
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminRoutesRequireKey(t *testing.T) {
	_, srv := newTestApp(t, nil)
	code, _ := post(t, srv, "/system/setPolicy", url.Values{"name": {"p"}, "scope": {"selfservice"}}, map[string]string{"X-Admin-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestValidateCheckSerialWithPin(t *testing.T) {
	_, srv := newTestApp(t, nil)
	admin(t, srv, "/admin/init", url.Values{"user": {"bob"}, "type": {"hmac"}, "serial": {"OATH0002"}, "otpkey": {seedHex}, "pin": {"1234"}})

	_, env := post(t, srv, "/validate/check_s", url.Values{"serial": {"OATH0002"}, "pass": {"0000" + hotpAt(t, 0)}}, nil)
	require.Equal(t, false, env.Result.Value)

	_, env = post(t, srv, "/validate/check_s", url.Values{"serial": {"OATH0002"}, "pass": {"1234" + hotpAt(t, 0)}}, nil)
	require.Equal(t, true, env.Result.Value)

	// el PIN fallido no consume el contador, el OTP aceptado sí
	_, env = post(t, srv, "/validate/check_s", url.Values{"serial": {"OATH0002"}, "pass": {"1234" + hotpAt(t, 0)}}, nil)
	require.Equal(t, false, env.Result.Value)
}

func TestValidatePairIsNotAnAuthentication(t *testing.T) {
	_, srv := newTestApp(t, nil)
	env := admin(t, srv, "/admin/init", url.Values{"user": {"carol"}, "type": {"qr"}, "serial": {"QR0001"}})
	require.Equal(t, true, env.Result.Value)
	pairingURL, _ := env.Detail["pairing_url"].(string)
	require.NotEmpty(t, pairingURL)

	inv, err := qr.ParsePairingURL(pairingURL)
	require.NoError(t, err)
	dev, err := qr.NewDevice(inv, "dev-carol")
	require.NoError(t, err)
	pr, err := dev.PairingResponse()
	require.NoError(t, err)

	_, env = post(t, srv, "/validate/pair", url.Values{"pairing_response": {pr}}, nil)
	require.True(t, env.Result.Status)
	require.Equal(t, false, env.Result.Value)
	require.Nil(t, env.Result.Error)
	require.Equal(t, "QR0001", env.Detail["serial"])

	// repetir el pairing falla sin autenticar
	_, env = post(t, srv, "/validate/pair", url.Values{"pairing_response": {pr}}, nil)
	require.False(t, env.Result.Status)
	require.Equal(t, "PAIRING_ERROR", env.Result.Error.Code)
}

func TestValidateRateLimit(t *testing.T) {
	_, srv := newTestApp(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.Validate.Limit = 2
		c.Rate.Validate.Window = time.Hour
	})
	form := url.Values{"serial": {"NOPE"}, "pass": {"123456"}}
	for i := 0; i < 2; i++ {
		code, _ := post(t, srv, "/validate/check_s", form, nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, env := post(t, srv, "/validate/check_s", form, nil)
	require.Equal(t, http.StatusTooManyRequests, code)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", env.Result.Error.Code)
}

func TestHealthz(t *testing.T) {
	_, srv := newTestApp(t, nil)
	res, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, res.Header.Get("X-Request-ID"))
}
