package service

import (
	"context"
	"errors"
	"time"

	"accounts/internal/accounts/device"
	"accounts/internal/accounts/models"
	"accounts/internal/audit"
	dErrors "accounts/pkg/domain-errors"
	"accounts/pkg/platform/sentinel"
)

// ResumeSession resolves an access token back to its sanitized user. An
// invalidated session is not an error: it returns (nil, nil) so callers can
// treat the client as logged out.
func (s *Server) ResumeSession(ctx context.Context, accessToken string) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.ResumeSession")
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ResumeDuration.Observe(float64(time.Since(start).Milliseconds()))
		}
	}()

	session, err := s.findSessionByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if !session.Valid {
		return nil, nil
	}

	user, err := s.store.FindUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load session user")
	}

	if s.options.ResumeSessionValidator != nil {
		if err := s.options.ResumeSessionValidator(ctx, user, session); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "Invalid Session")
		}
	}

	if s.metrics != nil {
		s.metrics.SessionsResumed.Inc()
	}
	return SanitizeUser(user), nil
}

// RefreshTokens exchanges an elapsed access token plus a live refresh token
// for a fresh pair. The access token only needs a genuine signature; the
// refresh token must still be within its lifetime.
func (s *Server) RefreshTokens(ctx context.Context, accessToken, refreshToken string, info models.ConnectionInfo) (*models.LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.RefreshTokens")
	defer span.End()

	if accessToken == "" || refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "An accessToken and refreshToken are required")
	}
	if _, err := s.tokens.Verify(refreshToken); err != nil {
		return nil, err
	}
	payload, err := s.tokens.VerifySignature(accessToken)
	if err != nil {
		return nil, err
	}

	session, err := s.findSessionByID(ctx, payload.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Session is no longer valid")
	}

	user, err := s.store.FindUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load session user")
	}

	if err := s.store.UpdateSession(ctx, session.ID, info.IP, info.UserAgent); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not update session")
	}

	tokens, err := s.createTokens(session.ID, payload.IsImpersonated)
	if err != nil {
		return nil, err
	}
	return &models.LoginResult{
		SessionID: session.ID,
		User:      SanitizeUser(user),
		Tokens:    tokens,
	}, nil
}

// Logout invalidates the session referenced by the access token.
func (s *Server) Logout(ctx context.Context, accessToken string) error {
	ctx, span := s.tracer.Start(ctx, "accounts.Logout")
	defer span.End()

	session, err := s.findSessionByAccessToken(ctx, accessToken)
	if err != nil {
		return err
	}
	if !session.Valid {
		return dErrors.New(dErrors.CodeUnauthorized, "Session is no longer valid")
	}

	if err := s.store.InvalidateSession(ctx, session.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not invalidate session")
	}

	if s.metrics != nil {
		s.metrics.SessionsInvalidated.Inc()
	}
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionLogout,
		UserID:    session.UserID,
		SessionID: session.ID,
		IP:        session.IP,
		Device:    device.ParseUserAgent(session.UserAgent),
	})
	return nil
}

// findSessionByAccessToken verifies the token (signature and expiry) and
// loads the referenced session.
func (s *Server) findSessionByAccessToken(ctx context.Context, accessToken string) (*models.Session, error) {
	if accessToken == "" {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "An accessToken is required")
	}
	payload, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	return s.findSessionByID(ctx, payload.SessionID)
}

func (s *Server) findSessionByID(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.store.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load session")
	}
	return session, nil
}
