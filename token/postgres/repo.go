// Package postgres stores the owner token in a dedicated "euterpe" schema.
//
// The database is shared with other applications that own the public schema,
// so every object this package creates lives under euterpe.* and nothing is
// ever created in public.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	errs "github.com/euterpe-music/euterpe/internal/errors"
	"github.com/euterpe-music/euterpe/token"
)

var _ token.Repo = (*Repo)(nil)

// Repo implements token.Repo on a pgx connection pool.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// EnsureSchema creates the euterpe schema and owner_tokens table if absent.
// Idempotent; called once at startup.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS euterpe`,
		`CREATE TABLE IF NOT EXISTS euterpe.owner_tokens (
			id                       TEXT PRIMARY KEY,
			access_token_ciphertext  TEXT NOT NULL,
			refresh_token_ciphertext TEXT NOT NULL,
			expires_at               TIMESTAMPTZ NOT NULL,
			token_type               TEXT NOT NULL DEFAULT 'Bearer',
			scope                    TEXT NOT NULL DEFAULT '',
			external_account_id      TEXT NOT NULL DEFAULT '',
			display_name             TEXT NOT NULL DEFAULT '',
			state                    TEXT NOT NULL,
			created_at               TIMESTAMPTZ NOT NULL,
			updated_at               TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return storeErr("ensure schema", err)
		}
	}
	return nil
}

const selectColumns = `id, access_token_ciphertext, refresh_token_ciphertext, expires_at,
	token_type, scope, external_account_id, display_name, state, created_at, updated_at`

func (r *Repo) Get(ctx context.Context) (*token.OwnerToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM euterpe.owner_tokens WHERE id = $1`, token.OwnerID)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get owner token", err)
	}
	return t, nil
}

func (r *Repo) Upsert(ctx context.Context, t *token.OwnerToken) error {
	if err := upsert(ctx, r.pool, t); err != nil {
		return storeErr("upsert owner token", err)
	}
	return nil
}

// Mutate locks the owner row with SELECT ... FOR UPDATE for the duration of
// fn, so the decide-refresh-write sequence cannot interleave with another
// instance's. fn returning nil leaves the row untouched.
func (r *Repo) Mutate(ctx context.Context, fn token.MutateFunc) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	row := tx.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM euterpe.owner_tokens WHERE id = $1 FOR UPDATE`, token.OwnerID)
	current, err := scanToken(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return storeErr("lock owner token", err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		current = nil
	}

	next, err := fn(ctx, current)
	if err != nil {
		return err
	}
	if next != nil {
		if err := upsert(ctx, tx, next); err != nil {
			return storeErr("write owner token", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsert(ctx context.Context, q execer, t *token.OwnerToken) error {
	_, err := q.Exec(ctx,
		`INSERT INTO euterpe.owner_tokens (`+selectColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			access_token_ciphertext  = EXCLUDED.access_token_ciphertext,
			refresh_token_ciphertext = EXCLUDED.refresh_token_ciphertext,
			expires_at               = EXCLUDED.expires_at,
			token_type               = EXCLUDED.token_type,
			scope                    = EXCLUDED.scope,
			external_account_id      = EXCLUDED.external_account_id,
			display_name             = EXCLUDED.display_name,
			state                    = EXCLUDED.state,
			created_at               = EXCLUDED.created_at,
			updated_at               = EXCLUDED.updated_at`,
		t.ID, t.AccessTokenCiphertext, t.RefreshTokenCiphertext, t.ExpiresAt,
		t.TokenType, t.Scope, t.ExternalAccountID, t.DisplayName, string(t.State),
		t.CreatedAt, t.UpdatedAt)
	return err
}

func scanToken(row pgx.Row) (*token.OwnerToken, error) {
	var t token.OwnerToken
	var state string
	err := row.Scan(&t.ID, &t.AccessTokenCiphertext, &t.RefreshTokenCiphertext, &t.ExpiresAt,
		&t.TokenType, &t.Scope, &t.ExternalAccountID, &t.DisplayName, &state,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.State = token.State(state)
	return &t, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errs.ErrStoreUnavailable, err)
}
