package policy

import (
	"path"
	"strings"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
	"github.com/dropDatabas3/otpgate/internal/domain/types"
)

// Scopes conocidos.
const (
	ScopeSelfservice    = "selfservice"
	ScopeAuthentication = "authentication"
	ScopeAdmin          = "admin"
)

// Acciones con significado para el core.
const (
	ActionVerify              = "verify"
	ActionEnrollPrefix        = "enroll"
	ActionSMSProvider         = "sms_provider"
	ActionQRPairingCallback   = "qrtoken_pairing_callback_url"
	ActionQRChallengeCallback = "qrtoken_challenge_callback_url"
)

// Capabilities es el action string parseado: nombre (minúsculas) -> valor.
// Acciones sin "=" tienen valor "".
type Capabilities map[string]string

// ParseActions parsea "enrollHMAC, verify, sms_provider=gw1" una sola vez.
// Entradas vacías se ignoran; en "k=v" solo el primer "=" separa.
func ParseActions(s string) Capabilities {
	caps := Capabilities{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		caps[name] = strings.TrimSpace(value)
	}
	return caps
}

func (c Capabilities) Has(action string) bool {
	_, ok := c[strings.ToLower(action)]
	return ok
}

func (c Capabilities) Value(action string) (string, bool) {
	v, ok := c[strings.ToLower(action)]
	return v, ok
}

// Compiled es una política lista para evaluar.
type Compiled struct {
	Name  string
	Scope string
	Caps  Capabilities

	include []string
	exclude []string
	realms  []string
}

// Compile parsea una política almacenada.
func Compile(p repository.Policy) Compiled {
	c := Compiled{
		Name:  p.Name,
		Scope: strings.ToLower(p.Scope),
		Caps:  ParseActions(p.Action),
	}
	for _, u := range splitList(p.User) {
		if rest, ok := strings.CutPrefix(u, "!"); ok {
			if rest = strings.TrimSpace(rest); rest != "" {
				c.exclude = append(c.exclude, rest)
			}
			continue
		}
		c.include = append(c.include, u)
	}
	for _, r := range splitList(p.Realm) {
		c.realms = append(c.realms, strings.ToLower(r))
	}
	return c
}

// Matches indica si la política aplica al caller.
func (c Compiled) Matches(auth types.AuthContext) bool {
	return c.matchRealm(auth.Realm) && c.matchUser(auth)
}

func (c Compiled) matchRealm(realm string) bool {
	if len(c.realms) == 0 {
		return true
	}
	realm = strings.ToLower(realm)
	for _, r := range c.realms {
		if r == "*" || r == realm {
			return true
		}
	}
	return false
}

func (c Compiled) matchUser(auth types.AuthContext) bool {
	for _, p := range c.exclude {
		if userMatch(p, auth) {
			return false
		}
	}
	if len(c.include) == 0 {
		return true
	}
	for _, p := range c.include {
		if userMatch(p, auth) {
			return true
		}
	}
	return false
}

// userMatch acepta "*", login exacto, glob ("admin_*") o "login@realm".
func userMatch(pattern string, auth types.AuthContext) bool {
	if pattern == "*" {
		return true
	}
	user := pattern
	if i := strings.LastIndex(pattern, "@"); i > 0 {
		if !strings.EqualFold(pattern[i+1:], auth.Realm) {
			return false
		}
		user = pattern[:i]
	}
	if user == auth.User {
		return true
	}
	ok, err := path.Match(user, auth.User)
	return err == nil && ok
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
