package repository

import (
	"context"
	"time"
)

// Policy es una política tal como se almacena: Action es el string crudo
// ("enrollHMAC, verify, sms_provider=gw1"); se parsea una vez al cargar.
type Policy struct {
	Name      string
	Scope     string
	Action    string
	User      string
	Realm     string
	Active    bool
	CreatedAt time.Time
}

// PolicyRepository define el acceso a políticas.
type PolicyRepository interface {
	// List retorna las políticas activas de un scope.
	List(ctx context.Context, scope string) ([]Policy, error)

	// Upsert crea o reemplaza una política por nombre.
	Upsert(ctx context.Context, p Policy) error

	// Delete elimina una política. Retorna ErrNotFound si no existe.
	Delete(ctx context.Context, name string) error
}
