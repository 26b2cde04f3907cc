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

type tokenRepo struct{ pool *pgxpool.Pool }

const tokenColumns = `serial, token_type, sealed_secret, counter, digits, time_step, pin_hash,
	owner_user, owner_realm, phone, description, active,
	pairing_state, pairing_nonce, device_public_key, device_token_id, paired_at,
	created_at, updated_at`

func scanToken(row pgx.Row) (*repository.Token, error) {
	var t repository.Token
	var typ, state string
	var digits int16
	err := row.Scan(
		&t.Serial, &typ, &t.SealedSecret, &t.Counter, &digits, &t.TimeStep, &t.PinHash,
		&t.User, &t.Realm, &t.Phone, &t.Description, &t.Active,
		&state, &t.Pairing.Nonce, &t.Pairing.DevicePublicKey, &t.Pairing.DeviceTokenID, &t.Pairing.PairedAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = repository.TokenType(typ)
	t.Digits = int(digits)
	t.Pairing.State = repository.PairingState(state)
	return &t, nil
}

func (r *tokenRepo) Get(ctx context.Context, serial string) (*repository.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM otp_token WHERE serial = $1`
	t, err := scanToken(r.pool.QueryRow(ctx, query, serial))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get token: %w", err)
	}
	return t, nil
}

func (r *tokenRepo) ListByOwner(ctx context.Context, user, realm string) ([]repository.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM otp_token
		WHERE owner_user = $1 AND lower(owner_realm) = lower($2)
		ORDER BY serial`
	rows, err := r.pool.Query(ctx, query, user, realm)
	if err != nil {
		return nil, fmt.Errorf("pg: list tokens: %w", err)
	}
	defer rows.Close()

	var out []repository.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan token: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *tokenRepo) Create(ctx context.Context, t repository.Token) error {
	const query = `
		INSERT INTO otp_token (serial, token_type, sealed_secret, counter, digits, time_step, pin_hash,
			owner_user, owner_realm, phone, description, active, pairing_state, pairing_nonce)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.pool.Exec(ctx, query,
		t.Serial, string(t.Type), t.SealedSecret, t.Counter, int16(t.Digits), t.TimeStep, t.PinHash,
		t.User, t.Realm, t.Phone, t.Description, t.Active, string(t.Pairing.State), t.Pairing.Nonce,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("pg: create token: %w", err)
	}
	return nil
}

func (r *tokenRepo) AdvanceCounter(ctx context.Context, serial string, expected, next int64) (bool, error) {
	if next <= expected {
		return false, nil
	}
	const query = `UPDATE otp_token SET counter = $3, updated_at = NOW() WHERE serial = $1 AND counter = $2`
	tag, err := r.pool.Exec(ctx, query, serial, expected, next)
	if err != nil {
		return false, fmt.Errorf("pg: advance counter: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	return false, r.mustExist(ctx, serial)
}

func (r *tokenRepo) SetPaired(ctx context.Context, serial, expectedNonce string, devicePub []byte, deviceTokenID string, at time.Time) (bool, error) {
	const query = `
		UPDATE otp_token
		SET pairing_state = 'paired', device_public_key = $3, device_token_id = $4, paired_at = $5, updated_at = $5
		WHERE serial = $1 AND pairing_state = 'unpaired' AND pairing_nonce = $2`
	tag, err := r.pool.Exec(ctx, query, serial, expectedNonce, nilIfEmpty(devicePub), deviceTokenID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("pg: set paired: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	return false, r.mustExist(ctx, serial)
}

func (r *tokenRepo) mustExist(ctx context.Context, serial string) error {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM otp_token WHERE serial = $1`, serial).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
