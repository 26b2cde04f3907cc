// Package jwt valida los bearer tokens HS256 del portal self-service y los
// traduce a AuthContext.
package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/otpgate/internal/domain/types"
)

var (
	ErrInvalidToken  = errors.New("invalid_jwt")
	ErrInvalidIssuer = errors.New("invalid_issuer")
	ErrNoSubject     = errors.New("missing_sub")
)

// Claims del portal: sub es el login, realm opcional.
type Claims struct {
	Realm string `json:"realm,omitempty"`
	jwtv5.RegisteredClaims
}

type Codec struct {
	secret       []byte
	issuer       string
	defaultRealm string
}

func NewCodec(secret, issuer, defaultRealm string) (*Codec, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt: secret must be at least 16 bytes")
	}
	return &Codec{secret: []byte(secret), issuer: issuer, defaultRealm: defaultRealm}, nil
}

// Issue firma un token (lo usan otpctl y los tests).
func (c *Codec) Issue(sub, realm string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Realm: realm,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   sub,
			Issuer:    c.issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(c.secret)
}

// Parse valida firma, exp/nbf (30s de tolerancia) e iss si está configurado.
func (c *Codec) Parse(token string) (types.AuthContext, error) {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(30 * time.Second),
	}
	if c.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(c.issuer))
	}
	var claims Claims
	tok, err := jwtv5.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwtv5.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if errors.Is(err, jwtv5.ErrTokenInvalidIssuer) {
		return types.AuthContext{}, ErrInvalidIssuer
	}
	if err != nil || !tok.Valid {
		return types.AuthContext{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return types.AuthContext{}, ErrNoSubject
	}
	auth := types.ParseLogin(claims.Subject, c.defaultRealm)
	if claims.Realm != "" {
		auth.Realm = strings.ToLower(claims.Realm)
	}
	return auth, nil
}
