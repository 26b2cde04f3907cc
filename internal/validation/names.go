// Package validation define las reglas de nombres que entran por la API.
package validation

import "regexp"

// Serial:
//   - Empieza con [A-Za-z0-9].
//   - Resto en [A-Za-z0-9_.:-].
//   - Largo 1..64.
//   - Sin metacaracteres de patrón (* ? [ ]), así un serial nunca se
//     interpreta como wildcard al resolver.
var serialRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,63}$`)

// Nombre de política: igual que serial pero sin ":" y hasta 128.
var policyNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidSerial indica si s es aceptable como serial de token.
func ValidSerial(s string) bool {
	return serialRe.MatchString(s)
}

// ValidPolicyName indica si s es aceptable como nombre de política.
func ValidPolicyName(s string) bool {
	return policyNameRe.MatchString(s)
}
