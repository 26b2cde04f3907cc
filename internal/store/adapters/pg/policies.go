package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
)

type policyRepo struct{ pool *pgxpool.Pool }

func (r *policyRepo) List(ctx context.Context, scope string) ([]repository.Policy, error) {
	const query = `
		SELECT name, scope, action, user_match, realm_match, active, created_at
		FROM otp_policy
		WHERE lower(scope) = lower($1) AND active
		ORDER BY name`
	rows, err := r.pool.Query(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("pg: list policies: %w", err)
	}
	defer rows.Close()

	var out []repository.Policy
	for rows.Next() {
		var p repository.Policy
		if err := rows.Scan(&p.Name, &p.Scope, &p.Action, &p.User, &p.Realm, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("pg: scan policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *policyRepo) Upsert(ctx context.Context, p repository.Policy) error {
	if p.Name == "" || p.Scope == "" {
		return repository.ErrInvalidInput
	}
	const query = `
		INSERT INTO otp_policy (name, scope, action, user_match, realm_match, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE
		SET scope = EXCLUDED.scope, action = EXCLUDED.action, user_match = EXCLUDED.user_match,
		    realm_match = EXCLUDED.realm_match, active = EXCLUDED.active`
	if _, err := r.pool.Exec(ctx, query, p.Name, p.Scope, p.Action, p.User, p.Realm, p.Active); err != nil {
		return fmt.Errorf("pg: upsert policy: %w", err)
	}
	return nil
}

func (r *policyRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otp_policy WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("pg: delete policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
