package qr

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/otperr"
	"github.com/dropDatabas3/otpgate/internal/store/adapters/memory"
)

type fixture struct {
	proto  *Protocol
	tokens repository.TokenRepository
	tok    repository.Token
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	tokens := memory.New().Tokens()
	p, err := New(key, "otpgate", tokens)
	require.NoError(t, err)

	nonce, err := NewPairingNonce()
	require.NoError(t, err)
	tok := repository.Token{
		Serial:  "QR0001",
		Type:    repository.TokenQR,
		User:    "alice",
		Realm:   "default",
		Active:  true,
		Pairing: repository.Pairing{State: repository.PairingUnpaired, Nonce: nonce},
	}
	require.NoError(t, tokens.Create(context.Background(), tok))
	return &fixture{proto: p, tokens: tokens, tok: tok}
}

func (f *fixture) device(t *testing.T) *Device {
	t.Helper()
	u, err := f.proto.PairingURL(&f.tok, "https://cb.example/pair")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "otpgate://pair/"))
	inv, err := ParsePairingURL(u)
	require.NoError(t, err)
	require.Equal(t, "https://cb.example/pair", inv.CallbackURL)
	d, err := NewDevice(inv, "device-1")
	require.NoError(t, err)
	return d
}

func TestPairAndAnswer_SignatureAndTAN(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.device(t)

	resp, err := d.PairingResponse()
	require.NoError(t, err)
	tok, err := f.proto.Pair(ctx, resp)
	require.NoError(t, err)
	require.Equal(t, repository.PairingPaired, tok.Pairing.State)
	require.Equal(t, "device-1", tok.Pairing.DeviceTokenID)

	payload, nonce, url, err := f.proto.BuildChallenge(tok, "12345678901234567890", "please confirm", "")
	require.NoError(t, err)
	require.NotEmpty(t, nonce)
	tx := &repository.Transaction{ID: "12345678901234567890", Serial: tok.Serial, Payload: payload, Nonce: nonce}

	ans, err := d.Answer(url)
	require.NoError(t, err)
	require.Equal(t, tx.ID, ans.TransactionID)
	require.Equal(t, "please confirm", ans.Message)
	require.Len(t, ans.TAN, TANDigits)

	require.True(t, f.proto.CheckResponse(tok, tx, ans.Signature))
	require.True(t, f.proto.CheckResponse(tok, tx, ans.TAN))
	require.False(t, f.proto.CheckResponse(tok, tx, "00000000"))
	require.False(t, f.proto.CheckResponse(tok, tx, ""))
}

func TestPair_RepeatedFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.device(t).PairingResponse()
	require.NoError(t, err)

	_, err = f.proto.Pair(ctx, resp)
	require.NoError(t, err)
	_, err = f.proto.Pair(ctx, resp)
	require.ErrorIs(t, err, otperr.ErrPairingError)
}

func TestPair_WrongServerKey(t *testing.T) {
	f := newFixture(t)
	d := f.device(t)
	other, err := GenerateKey()
	require.NoError(t, err)
	d.ServerPub, err = publicKey(other)
	require.NoError(t, err)

	resp, err := d.PairingResponse()
	require.NoError(t, err)
	_, err = f.proto.Pair(context.Background(), resp)
	require.ErrorIs(t, err, otperr.ErrPairingError)

	tok, err := f.tokens.Get(context.Background(), f.tok.Serial)
	require.NoError(t, err)
	require.Equal(t, repository.PairingUnpaired, tok.Pairing.State)
}

// La MAC se calcula con una clave de device distinta a la publicada.
func TestPair_WrongDeviceKey(t *testing.T) {
	f := newFixture(t)
	d := f.device(t)
	pub, err := publicKey(d.Priv)
	require.NoError(t, err)

	other, err := GenerateKey()
	require.NoError(t, err)
	k, err := tokenKey(other, d.ServerPub, d.Serial)
	require.NoError(t, err)
	inner := `{"v":1,"serial":"` + d.Serial + `","token_id":"x","device_pub":"` + b64.EncodeToString(pub) +
		`","nonce":"` + d.Nonce + `","mac":"` + b64.EncodeToString(pairingMAC(k, d.Serial, "x", d.Nonce)) + `"}`
	resp, err := sealEnvelope(d.ServerPub, []byte(inner))
	require.NoError(t, err)

	_, err = f.proto.Pair(context.Background(), resp)
	require.ErrorIs(t, err, otperr.ErrPairingError)
}

func TestPair_NonceMismatchAndGarbage(t *testing.T) {
	f := newFixture(t)
	d := f.device(t)
	d.Nonce = "forged"
	resp, err := d.PairingResponse()
	require.NoError(t, err)
	_, err = f.proto.Pair(context.Background(), resp)
	require.ErrorIs(t, err, otperr.ErrPairingError)

	_, err = f.proto.Pair(context.Background(), "not-base64!!")
	require.ErrorIs(t, err, otperr.ErrPairingError)
}

func TestBuildChallenge_RequiresPaired(t *testing.T) {
	f := newFixture(t)
	_, _, _, err := f.proto.BuildChallenge(&f.tok, "1", "m", "")
	require.ErrorIs(t, err, otperr.ErrPairingError)
}

func TestDevice_RejectsForgedChallenge(t *testing.T) {
	f := newFixture(t)
	d := f.device(t)
	resp, err := d.PairingResponse()
	require.NoError(t, err)
	tok, err := f.proto.Pair(context.Background(), resp)
	require.NoError(t, err)

	_, _, url, err := f.proto.BuildChallenge(tok, "42", "m", "")
	require.NoError(t, err)
	i := strings.LastIndex(url, ".")
	forged := url[:i] + "." + b64.EncodeToString(make([]byte, 64))
	_, err = d.Answer(forged)
	require.Error(t, err)
}

func TestTANFromSig(t *testing.T) {
	sig := make([]byte, 32)
	sig[31] = 0x00
	sig[0], sig[1], sig[2], sig[3] = 0x00, 0x00, 0x00, 0x2a
	if got := tanFromSig(sig); got != "00000042" {
		t.Fatalf("tan=%s", got)
	}
}

func TestParseKey(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	got, err := ParseKey(b64.EncodeToString(k))
	require.NoError(t, err)
	require.Equal(t, k, got)
	_, err = ParseKey(b64.EncodeToString(k[:16]))
	require.ErrorIs(t, err, ErrKeySize)
}
