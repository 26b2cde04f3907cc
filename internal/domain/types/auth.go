// Package types define tipos de dominio compartidos entre paquetes.
package types

import "strings"

// AuthContext es la identidad resuelta del caller (user, realm). El core la
// usa para acotar la resolución de tokens y la autorización; nunca la muta.
type AuthContext struct {
	User  string
	Realm string
}

// IsZero indica un caller anónimo (ej: /validate sin sesión).
func (a AuthContext) IsZero() bool {
	return a.User == "" && a.Realm == ""
}

// String retorna "user@realm".
func (a AuthContext) String() string {
	if a.Realm == "" {
		return a.User
	}
	return a.User + "@" + a.Realm
}

// ParseLogin separa "user@realm"; si no hay realm usa defaultRealm.
func ParseLogin(login, defaultRealm string) AuthContext {
	login = strings.TrimSpace(login)
	if i := strings.LastIndex(login, "@"); i > 0 && i < len(login)-1 {
		return AuthContext{User: login[:i], Realm: strings.ToLower(login[i+1:])}
	}
	return AuthContext{User: login, Realm: strings.ToLower(defaultRealm)}
}
