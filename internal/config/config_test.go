package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "otpgate.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeYAML(t, "app:\n  env: dev\n"))
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "memory", c.Storage.Driver)
	require.Equal(t, 10, c.OTP.HOTPWindow)
	require.Equal(t, 1, c.OTP.TOTPWindow)
	require.Equal(t, 30, c.OTP.TOTPStep)
	require.Equal(t, 6, c.OTP.Digits)
	require.Equal(t, 2*time.Minute, c.Challenge.TTL)
	require.Equal(t, "<otp> is your one-time password", c.Challenge.SMSTemplate)
	require.Equal(t, 10*time.Second, c.SMS.Timeout)
}

func TestLoad_Providers(t *testing.T) {
	c, err := Load(writeYAML(t, `
sms:
  default: gw
  timeout: 3s
  providers:
    - name: gw
      kind: http
      http:
        url: http://sms.local/send
    - name: devfile
      kind: file
      file:
        path: /tmp/sms.log
challenge:
  ttl: 90s
`))
	require.NoError(t, err)
	require.Len(t, c.SMS.Providers, 2)
	require.Equal(t, "phone", c.SMS.Providers[0].HTTP.PhoneParam)
	require.Equal(t, 3*time.Second, c.SMS.Timeout)
	require.Equal(t, 90*time.Second, c.Challenge.TTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OTPGATE_HOTP_WINDOW", "3")
	t.Setenv("OTPGATE_ADDR", ":9999")
	c, err := Load(writeYAML(t, "otp:\n  hotp_window: 20\n"))
	require.NoError(t, err)
	require.Equal(t, 3, c.OTP.HOTPWindow)
	require.Equal(t, ":9999", c.Server.Addr)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"pg sin dsn":        "storage:\n  driver: postgres\n",
		"digits":            "otp:\n  digits: 7\n",
		"default inexist":   "sms:\n  default: nope\n",
		"kind inválido":     "sms:\n  providers:\n    - name: a\n      kind: carrier-pigeon\n",
		"redis sin addr":    "cache:\n  transactions: redis\n",
		"prod sin secretos": "app:\n  env: prod\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			require.Error(t, err)
		})
	}
}
