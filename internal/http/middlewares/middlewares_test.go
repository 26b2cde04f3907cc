package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/domain/types"
	"github.com/dropDatabas3/otpgate/internal/rate"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler, mk("a"), mk("b"), mk("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc", seen)
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, seen, 36)
	require.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRecover(t *testing.T) {
	h := WithRecover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSecurityHeadersAndNoStore(t *testing.T) {
	h := Chain(okHandler, WithSecurityHeaders(), WithNoStore())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

type fakeLimiter struct {
	res rate.Result
	err error
}

func (f fakeLimiter) Allow(context.Context, string) (rate.Result, error) { return f.res, f.err }

func TestRateLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	WithRateLimit(fakeLimiter{res: rate.Result{Allowed: false, RetryAfter: 7 * time.Second}}, nil)(okHandler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/validate/check_s", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "7", rec.Header().Get("Retry-After"))

	// un limiter caído no bloquea
	rec = httptest.NewRecorder()
	WithRateLimit(fakeLimiter{err: errors.New("redis down")}, nil)(okHandler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	WithRateLimit(nil, nil)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitWithMemoryLimiter(t *testing.T) {
	h := WithRateLimit(rate.NewMemoryLimiter(1, time.Hour), nil)(okHandler)
	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/validate/check_s", nil)
		r.RemoteAddr = ip + ":5555"
		return r
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req("10.0.0.1"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req("10.0.0.2"))
	require.Equal(t, http.StatusOK, rec.Code)
}

type parserFunc func(string) (types.AuthContext, error)

func (f parserFunc) Parse(tok string) (types.AuthContext, error) { return f(tok) }

func TestRequireAuth(t *testing.T) {
	p := parserFunc(func(tok string) (types.AuthContext, error) {
		if tok == "good" {
			return types.AuthContext{User: "alice", Realm: "r1"}, nil
		}
		return types.AuthContext{}, errors.New("bad")
	})
	var got types.AuthContext
	h := RequireAuth(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetAuth(r.Context())
	}))

	for _, hdr := range []string{"", "Basic good", "Bearer ", "Bearer bad"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, hdr)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "bearer good")
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice@r1", got.String())
}

func TestRequireAdminKey(t *testing.T) {
	cases := []struct {
		configured, sent string
		want             int
	}{
		{"k", "k", http.StatusOK},
		{"k", "x", http.StatusUnauthorized},
		{"", "", http.StatusUnauthorized},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Admin-API-Key", c.sent)
		RequireAdminKey(c.configured)(okHandler).ServeHTTP(rec, req)
		require.Equal(t, c.want, rec.Code)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/validate/check_s":             "/validate/check_s",
		"/tx/12345678901234567890":      "/tx/:param",
		"/a/0123456789abcdef0123/b?x=1": "/a/:param/b",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
