package reply

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/otperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestWriteValue(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "rid-1")
	WriteValue(rec, true, map[string]any{"serial": "S1"})

	require.Equal(t, http.StatusOK, rec.Code)
	m := decode(t, rec)
	require.Equal(t, "rid-1", m["id"])
	res := m["result"].(map[string]any)
	require.Equal(t, true, res["status"])
	require.Equal(t, true, res["value"])
	require.Equal(t, "S1", m["detail"].(map[string]any)["serial"])
}

func TestWriteError(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	rec := httptest.NewRecorder()
	WriteError(rec, r, otperr.ErrAmbiguousToken.WithDetail("S*"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode(t, rec)["result"].(map[string]any)
	require.Equal(t, false, res["status"])
	require.Equal(t, false, res["value"])
	require.Equal(t, "multiple tokens found!", res["error"].(map[string]any)["message"])

	rec = httptest.NewRecorder()
	WriteError(rec, r, otperr.ErrInvalidOtp, nil)
	res = decode(t, rec)["result"].(map[string]any)
	require.Equal(t, true, res["status"])
	require.Equal(t, false, res["value"])

	rec = httptest.NewRecorder()
	WriteError(rec, r, errors.New("db down"), nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	res = decode(t, rec)["result"].(map[string]any)
	require.Equal(t, "internal error", res["error"].(map[string]any)["message"])
}
