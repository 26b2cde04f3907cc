// Package dal importa todos los adapters para auto-registro.
//
// Uso:
//
//	import _ "github.com/dropDatabas3/otpgate/internal/store/adapters/dal"
package dal

import (
	_ "github.com/dropDatabas3/otpgate/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/otpgate/internal/store/adapters/pg"
	_ "github.com/dropDatabas3/otpgate/internal/store/adapters/redis"
)
