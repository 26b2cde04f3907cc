package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/verify"
)

func TestReadParamsForm(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/x?serial=Q1", strings.NewReader("otp=123456&serial=B1"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	p, err := readParams(r)
	require.NoError(t, err)
	require.Equal(t, "123456", p["otp"])
	require.Equal(t, "B1", p["serial"])
}

func TestReadParamsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"serial":"S1","otplen":8,"active":true,"pin":null}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	p, err := readParams(r)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"serial": "S1", "otplen": "8", "active": "true"}, p)

	r = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"serial":["a"]}`))
	r.Header.Set("Content-Type", "application/json")
	_, err = readParams(r)
	require.ErrorIs(t, err, errBadBody)

	r = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`<xml/>`))
	r.Header.Set("Content-Type", "text/xml")
	_, err = readParams(r)
	require.ErrorIs(t, err, errBadBody)
}

func TestToDetailDefaultsReplyMode(t *testing.T) {
	require.Nil(t, toDetail(nil))
	require.Nil(t, toDetail(&verify.Response{Value: true}))

	d := toDetail(&verify.Response{Detail: verify.Detail{Serial: "S", TransactionID: "1"}}).(detailDTO)
	require.Equal(t, []string{"offline"}, d.ReplyMode)
}

func TestTake(t *testing.T) {
	p := map[string]string{"user": " bob ", "type": "hmac"}
	require.Equal(t, "bob", take(p, "user"))
	_, ok := p["user"]
	require.False(t, ok)
	require.Equal(t, "", take(p, "missing"))
}
