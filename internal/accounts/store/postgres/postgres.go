// Package postgres is the pgx storage adapter. Layout mirrors the document
// shape the core expects: users plus a per-service data blob, additional
// email addresses, one-shot tokens, and sessions.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"accounts/internal/accounts/store"
	"accounts/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Schema is the DDL the adapter expects. Applied by EnsureSchema; exported
// so operators can run it through their own migration tooling instead.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT,
	email      TEXT,
	profile    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (LOWER(username)) WHERE username IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email)) WHERE email IS NOT NULL;

CREATE TABLE IF NOT EXISTS user_services (
	user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	service TEXT NOT NULL,
	data    JSONB NOT NULL,
	PRIMARY KEY (user_id, service)
);
CREATE INDEX IF NOT EXISTS user_services_id_idx ON user_services (service, (data ->> 'id'));

CREATE TABLE IF NOT EXISTS user_emails (
	user_id  TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	address  TEXT NOT NULL,
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (user_id, address)
);
CREATE UNIQUE INDEX IF NOT EXISTS user_emails_address_key ON user_emails (LOWER(address));

CREATE TABLE IF NOT EXISTS account_tokens (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	email      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	reason     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	valid      BOOLEAN NOT NULL DEFAULT TRUE,
	ip         TEXT,
	user_agent TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sessions_user_idx ON sessions (user_id);
`

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New connects to databaseURL and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool. Callers own the pool lifecycle.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema applies the DDL. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// translateErr maps driver errors onto the adapter sentinels.
func translateErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	return err
}
