// Package util tiene helpers chicos sin dependencias del dominio.
package util

import "strings"

// MaskPhone deja visibles los últimos 3 dígitos: "+5491155551234" -> "+**********234".
func MaskPhone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case i == 0 && r == '+':
			b.WriteRune(r)
		case i >= len(s)-3:
			b.WriteRune(r)
		default:
			b.WriteByte('*')
		}
	}
	return b.String()
}

// MaskEmail enmascara direcciones de gateways SMTP: "5551234@sms.example.com" -> "5…@s….example.com".
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		return MaskPhone(s)
	}
	user, dom := s[:i], s[i+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	dparts := strings.Split(dom, ".")
	if len(dparts) > 0 && len(dparts[0]) > 1 {
		dparts[0] = dparts[0][:1] + "…"
	}
	return user + "@" + strings.Join(dparts, ".")
}
