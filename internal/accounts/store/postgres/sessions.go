package postgres

import (
	"context"

	"github.com/google/uuid"

	"accounts/internal/accounts/models"
	"accounts/pkg/platform/sentinel"
)

func (s *Store) CreateSession(ctx context.Context, userID, ip, userAgent string) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, valid, ip, user_agent) VALUES ($1, $2, TRUE, $3, $4)
	`, id, userID, ip, userAgent)
	if err != nil {
		return "", translateErr(err)
	}
	return id, nil
}

func (s *Store) FindSessionByID(ctx context.Context, sessionID string) (*models.Session, error) {
	var (
		session   models.Session
		ip        *string
		userAgent *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, valid, ip, user_agent, created_at, updated_at
		FROM sessions WHERE id = $1
	`, sessionID).Scan(&session.ID, &session.UserID, &session.Valid, &ip, &userAgent, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	if ip != nil {
		session.IP = *ip
	}
	if userAgent != nil {
		session.UserAgent = *userAgent
	}
	return &session, nil
}

func (s *Store) UpdateSession(ctx context.Context, sessionID, ip, userAgent string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET ip = $2, user_agent = $3, updated_at = now() WHERE id = $1
	`, sessionID, ip, userAgent)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) InvalidateSession(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET valid = FALSE, updated_at = now() WHERE id = $1
	`, sessionID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) InvalidateAllSessions(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET valid = FALSE, updated_at = now() WHERE user_id = $1
	`, userID)
	return translateErr(err)
}
