package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"accounts/internal/accounts/models"
	"accounts/pkg/platform/sentinel"
)

// The password credential lives in user_services under the "password"
// service, keyed "bcrypt", matching the document shape the other adapters
// use.
const passwordService = "password"

func (s *Store) FindPasswordHash(ctx context.Context, userID string) (string, error) {
	var hash *string
	err := s.pool.QueryRow(ctx, `
		SELECT data ->> 'bcrypt' FROM user_services WHERE user_id = $1 AND service = $2
	`, userID, passwordService).Scan(&hash)
	if err != nil {
		return "", translateErr(err)
	}
	if hash == nil || *hash == "" {
		return "", sentinel.ErrNotFound
	}
	return *hash, nil
}

func (s *Store) SetPassword(ctx context.Context, userID, newHash string) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	return setPasswordTx(ctx, s.pool, userID, newHash)
}

// pgxExecutor lets the password upsert run inside or outside a
// transaction; both pgxpool.Pool and pgx.Tx satisfy it.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func setPasswordTx(ctx context.Context, db pgxExecutor, userID, newHash string) error {
	blob, err := json.Marshal(map[string]string{"bcrypt": newHash})
	if err != nil {
		return fmt.Errorf("marshal password record: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO user_services (user_id, service, data) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, service) DO UPDATE SET data = EXCLUDED.data
	`, userID, passwordService, blob)
	return translateErr(err)
}

func (s *Store) FindUserByResetPasswordToken(ctx context.Context, token string) (*models.User, error) {
	return s.findUserByToken(ctx, token, "reset")
}

func (s *Store) AddResetPasswordToken(ctx context.Context, userID, email, token, reason string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_tokens (token, user_id, email, kind, reason) VALUES ($1, $2, $3, $4, $5)
	`, token, userID, strings.ToLower(email), "reset", reason)
	return translateErr(err)
}

func (s *Store) SetResetPassword(ctx context.Context, userID, email, newHash, token string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset password: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM account_tokens WHERE token = $1 AND user_id = $2 AND kind = 'reset'
	`, token, userID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	if err := setPasswordTx(ctx, tx, userID, newHash); err != nil {
		return err
	}
	return translateErr(tx.Commit(ctx))
}

func (s *Store) AddEmail(ctx context.Context, userID, newEmail string, verified bool) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_emails (user_id, address, verified) VALUES ($1, $2, $3)
	`, userID, strings.ToLower(newEmail), verified)
	return translateErr(err)
}

func (s *Store) RemoveEmail(ctx context.Context, userID, email string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM user_emails WHERE user_id = $1 AND LOWER(address) = LOWER($2)
	`, userID, email)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) VerifyEmail(ctx context.Context, userID, email string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE user_emails SET verified = TRUE WHERE user_id = $1 AND LOWER(address) = LOWER($2)
	`, userID, email)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) FindUserByEmailVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return s.findUserByToken(ctx, token, "verify")
}

func (s *Store) AddEmailVerificationToken(ctx context.Context, userID, email, token string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_tokens (token, user_id, email, kind) VALUES ($1, $2, $3, $4)
	`, token, userID, strings.ToLower(email), "verify")
	return translateErr(err)
}

func (s *Store) findUserByToken(ctx context.Context, token, kind string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.email, u.profile
		FROM users u
		JOIN account_tokens t ON t.user_id = u.id
		WHERE t.token = $1 AND t.kind = $2
	`, token, kind)
	return s.scanAndAssemble(ctx, row)
}

func (s *Store) requireUser(ctx context.Context, userID string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return translateErr(err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return nil
}
