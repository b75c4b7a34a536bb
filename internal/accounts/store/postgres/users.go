package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"accounts/internal/accounts/models"
	"accounts/internal/accounts/store"
	"accounts/pkg/platform/sentinel"
)

const userColumns = "id, username, email, profile"

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return s.scanAndAssemble(ctx, row)
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return s.scanAndAssemble(ctx, row)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	// Primary address first, then the additional-address table.
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	user, err := s.scanAndAssemble(ctx, row)
	if err == nil || !errors.Is(err, sentinel.ErrNotFound) {
		return user, err
	}

	row = s.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.email, u.profile
		FROM users u
		JOIN user_emails e ON e.user_id = u.id
		WHERE LOWER(e.address) = LOWER($1)
	`, email)
	return s.scanAndAssemble(ctx, row)
}

func (s *Store) FindUserByServiceID(ctx context.Context, service, id string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.email, u.profile
		FROM users u
		JOIN user_services sv ON sv.user_id = u.id
		WHERE sv.service = $1 AND sv.data ->> 'id' = $2
	`, service, id)
	return s.scanAndAssemble(ctx, row)
}

func (s *Store) CreateUser(ctx context.Context, candidate store.NewUser) (string, error) {
	profile, err := marshalJSON(candidate.Profile)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	email := strings.ToLower(candidate.Email)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin create user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, username, email, profile)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
	`, id, candidate.Username, email, profile)
	if err != nil {
		return "", translateErr(err)
	}

	if email != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_emails (user_id, address, verified) VALUES ($1, $2, FALSE)
		`, id, email); err != nil {
			return "", translateErr(err)
		}
	}
	if candidate.PasswordHash != "" {
		if err := setPasswordTx(ctx, tx, id, candidate.PasswordHash); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", translateErr(err)
	}
	return id, nil
}

func (s *Store) SetUsername(ctx context.Context, userID, username string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET username = $2, updated_at = now() WHERE id = $1
	`, userID, username)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) SetProfile(ctx context.Context, userID string, profile map[string]any) error {
	data, err := marshalJSON(profile)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET profile = $2, updated_at = now() WHERE id = $1
	`, userID, data)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) SetService(ctx context.Context, userID, service string, data map[string]any) error {
	blob, err := marshalJSON(data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_services (user_id, service, data) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, service) DO UPDATE SET data = EXCLUDED.data
	`, userID, service, blob)
	return translateErr(err)
}

// scanAndAssemble hydrates the full user record: base row, additional
// addresses, and per-service data.
func (s *Store) scanAndAssemble(ctx context.Context, row pgx.Row) (*models.User, error) {
	var (
		user     models.User
		username *string
		email    *string
		profile  []byte
	)
	if err := row.Scan(&user.ID, &username, &email, &profile); err != nil {
		return nil, translateErr(err)
	}
	if username != nil {
		user.Username = *username
	}
	if email != nil {
		user.Email = *email
	}
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &user.Profile); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT address, verified FROM user_emails WHERE user_id = $1 ORDER BY address
	`, user.ID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec models.EmailRecord
		if err := rows.Scan(&rec.Address, &rec.Verified); err != nil {
			return nil, translateErr(err)
		}
		user.Emails = append(user.Emails, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}

	svcRows, err := s.pool.Query(ctx, `
		SELECT service, data FROM user_services WHERE user_id = $1
	`, user.ID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer svcRows.Close()
	for svcRows.Next() {
		var (
			name string
			blob []byte
		)
		if err := svcRows.Scan(&name, &blob); err != nil {
			return nil, translateErr(err)
		}
		var data map[string]any
		if err := json.Unmarshal(blob, &data); err != nil {
			return nil, fmt.Errorf("unmarshal service data: %w", err)
		}
		if user.Services == nil {
			user.Services = make(map[string]map[string]any)
		}
		user.Services[name] = data
	}
	if err := svcRows.Err(); err != nil {
		return nil, translateErr(err)
	}

	return &user, nil
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return data, nil
}
