package service

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"accounts/internal/accounts/device"
	"accounts/internal/accounts/models"
	"accounts/internal/audit"
	jwttoken "accounts/internal/jwt_token"
	dErrors "accounts/pkg/domain-errors"
)

// LoginWithService authenticates the raw params against the named identity
// service and, on success, opens a session for the resolved user.
func (s *Server) LoginWithService(ctx context.Context, serviceName string, params json.RawMessage, info models.ConnectionInfo) (*models.LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.LoginWithService",
		trace.WithAttributes(attribute.String("accounts.service", serviceName)))
	defer span.End()

	svc, ok := s.services[serviceName]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeUnknownService, "No service with the name %s was registered", serviceName)
	}

	user, err := svc.Authenticate(ctx, params)
	if err != nil {
		s.recordLoginFailure(ctx, serviceName, info, err)
		return nil, err
	}
	if user == nil {
		err := dErrors.Newf(dErrors.CodeAuthenticationFailed, "Service %s was not able to authenticate user", serviceName)
		s.recordLoginFailure(ctx, serviceName, info, err)
		return nil, err
	}

	result, err := s.LoginWithUser(ctx, user, info)
	if err != nil {
		s.recordLoginFailure(ctx, serviceName, info, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordLogin(serviceName, "success")
	}
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionLoginSuccess,
		Service:   serviceName,
		UserID:    user.ID,
		SessionID: result.SessionID,
		IP:        info.IP,
		Device:    device.ParseUserAgent(info.UserAgent),
	})
	return result, nil
}

// LoginWithUser opens a session for an already-authenticated user and mints
// its token pair. Callers that bypass an identity service (impersonation,
// trusted sign-in) use this directly.
func (s *Server) LoginWithUser(ctx context.Context, user *models.User, info models.ConnectionInfo) (*models.LoginResult, error) {
	if user == nil || user.ID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "A user is required to login")
	}

	sessionID, err := s.store.CreateSession(ctx, user.ID, info.IP, info.UserAgent)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create session")
	}

	tokens, err := s.createTokens(sessionID, false)
	if err != nil {
		return nil, err
	}

	return &models.LoginResult{
		SessionID: sessionID,
		User:      SanitizeUser(user),
		Tokens:    tokens,
	}, nil
}

// createTokens mints the access/refresh pair for a session. The refresh
// token deliberately carries an empty payload: it proves possession, the
// access token carries the session reference.
func (s *Server) createTokens(sessionID string, isImpersonated bool) (models.Tokens, error) {
	accessToken, err := s.tokens.Issue(jwttoken.Payload{
		SessionID:      sessionID,
		IsImpersonated: isImpersonated,
	}, s.options.AccessTokenExpiration)
	if err != nil {
		return models.Tokens{}, err
	}

	refreshToken, err := s.tokens.Issue(jwttoken.Payload{}, s.options.RefreshTokenExpiration)
	if err != nil {
		return models.Tokens{}, err
	}

	return models.Tokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RecordUserCreated counts a successful registration and emits its audit
// event. Registration runs outside the login paths, so the transport calls
// this after the identity service persists the user.
func (s *Server) RecordUserCreated(ctx context.Context, serviceName, userID string, info models.ConnectionInfo) {
	if s.metrics != nil {
		s.metrics.UsersCreated.Inc()
	}
	s.audit.Emit(ctx, audit.Event{
		Action:  audit.ActionUserCreated,
		Service: serviceName,
		UserID:  userID,
		IP:      info.IP,
		Device:  device.ParseUserAgent(info.UserAgent),
	})
}

func (s *Server) recordLoginFailure(ctx context.Context, serviceName string, info models.ConnectionInfo, err error) {
	if s.metrics != nil {
		s.metrics.RecordLogin(serviceName, "failure")
	}
	s.logger.WarnContext(ctx, "login failed",
		"service", serviceName,
		"error_code", string(dErrors.CodeOf(err)),
	)
	s.audit.Emit(ctx, audit.Event{
		Action:  audit.ActionLoginFailure,
		Service: serviceName,
		IP:      info.IP,
		Device:  device.ParseUserAgent(info.UserAgent),
		Detail:  map[string]string{"error_code": string(dErrors.CodeOf(err))},
	})
}
