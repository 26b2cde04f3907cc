// Package repository define los modelos y contratos de persistencia del core OTP.
//
// Las implementaciones viven en internal/store/adapters/ (memory, pg, redis).
// El core solo muta estado a través de operaciones compare-and-set por entidad:
//
//	TokenRepository.AdvanceCounter   counter esperado -> siguiente
//	TokenRepository.SetPaired        unpaired (+nonce) -> paired
//	TransactionRepository.Claim      pending -> consumed
//
// No hay locks globales; la contención queda acotada a la entidad.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de store en errors.go
package repository
