package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/otpgate/internal/domain/repository"
)

type txRepo struct{ pool *pgxpool.Pool }

func (r *txRepo) Create(ctx context.Context, tx repository.Transaction) error {
	const query = `
		INSERT INTO otp_transaction (id, serial, token_type, status, created_at, expires_at, message, otp_hash, payload, nonce)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query,
		tx.ID, tx.Serial, string(tx.TokenType), string(tx.Status), tx.CreatedAt.UTC(), tx.ExpiresAt.UTC(),
		tx.Message, tx.OTPHash, tx.Payload, tx.Nonce,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("pg: create transaction: %w", err)
	}
	return nil
}

func (r *txRepo) Get(ctx context.Context, id string) (*repository.Transaction, error) {
	const query = `
		SELECT id, serial, token_type, status, created_at, expires_at, message, otp_hash, payload, nonce
		FROM otp_transaction WHERE id = $1`
	var tx repository.Transaction
	var typ, status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tx.ID, &tx.Serial, &typ, &status, &tx.CreatedAt, &tx.ExpiresAt,
		&tx.Message, &tx.OTPHash, &tx.Payload, &tx.Nonce,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get transaction: %w", err)
	}
	tx.TokenType = repository.TokenType(typ)
	tx.Status = repository.TransactionStatus(status)
	return &tx, nil
}

// Claim: el UPDATE condicional es el punto de serialización; si no afecta
// filas se lee el estado solo para clasificar el motivo.
func (r *txRepo) Claim(ctx context.Context, id string, now time.Time) (repository.ClaimResult, error) {
	const claim = `
		UPDATE otp_transaction SET status = 'consumed'
		WHERE id = $1 AND status = 'pending' AND expires_at > $2`
	tag, err := r.pool.Exec(ctx, claim, id, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("pg: claim transaction: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return repository.ClaimAccepted, nil
	}

	var status string
	err = r.pool.QueryRow(ctx, `SELECT status FROM otp_transaction WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("pg: claim lookup: %w", err)
	}
	if status != string(repository.TxPending) {
		return repository.ClaimNotPending, nil
	}
	return repository.ClaimExpired, nil
}
