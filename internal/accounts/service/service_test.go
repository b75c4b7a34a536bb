package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"accounts/internal/accounts/models"
	"accounts/internal/accounts/store"
	"accounts/internal/accounts/store/memory"
	"accounts/internal/audit"
	"accounts/internal/password"
	"accounts/internal/platform/metrics"
	dErrors "accounts/pkg/domain-errors"
)

type ServerSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.Store
	events *audit.MemoryStore
	server *Server
}

func (s *ServerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.events = audit.NewMemoryStore()
	s.server = s.newServer(Options{TokenSecret: "test-secret"})
}

func (s *ServerSuite) newServer(options Options) *Server {
	pw, err := password.New(password.Options{BcryptCost: 4})
	s.Require().NoError(err)

	server, err := New(options, s.store,
		map[string]IdentityService{password.ServiceName: pw},
		WithMetrics(metrics.NewWith(prometheus.NewRegistry())),
		WithAudit(audit.NewPublisher(s.events, nil)),
	)
	s.Require().NoError(err)
	return server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) registerAlice() string {
	if user, err := s.store.FindUserByUsername(s.ctx, "alice"); err == nil {
		return user.ID
	}
	pw, err := password.New(password.Options{BcryptCost: 4})
	s.Require().NoError(err)
	pw.SetStore(s.store)

	id, err := pw.CreateUser(s.ctx, models.CreateUser{
		Username: "alice",
		Password: models.Password{Plain: "s3cret!"},
	})
	s.Require().NoError(err)
	return id
}

func loginParams(user, pass string) json.RawMessage {
	params, _ := json.Marshal(map[string]any{"user": user, "password": pass})
	return params
}

func (s *ServerSuite) TestRecordUserCreated() {
	id := s.registerAlice()
	before := len(s.events.Events())

	s.server.RecordUserCreated(s.ctx, "password", id, models.ConnectionInfo{IP: "203.0.113.7"})

	s.Equal(float64(1), testutil.ToFloat64(s.server.metrics.UsersCreated))

	events := s.events.Events()
	s.Require().Len(events, before+1)
	created := events[len(events)-1]
	s.Equal(audit.ActionUserCreated, created.Action)
	s.Equal("password", created.Service)
	s.Equal(id, created.UserID)
	s.Equal("203.0.113.7", created.IP)
}

func (s *ServerSuite) TestLoginWithService() {
	s.Run("unregistered service name is refused", func() {
		_, err := s.server.LoginWithService(s.ctx, "facebook", loginParams("alice", "s3cret!"), models.ConnectionInfo{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownService))
		s.Contains(err.Error(), "No service with the name facebook was registered")
	})

	s.Run("password login yields a session and sanitized user", func() {
		id := s.registerAlice()
		result, err := s.server.LoginWithService(s.ctx, "password", loginParams("alice", "s3cret!"), models.ConnectionInfo{
			IP:        "203.0.113.7",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		})
		s.Require().NoError(err)
		s.Equal(id, result.User.ID)
		s.Nil(result.User.Services)
		s.NotEmpty(result.SessionID)
		s.NotEmpty(result.Tokens.AccessToken)
		s.NotEmpty(result.Tokens.RefreshToken)

		session, err := s.store.FindSessionByID(s.ctx, result.SessionID)
		s.Require().NoError(err)
		s.True(session.Valid)
		s.Equal("203.0.113.7", session.IP)
	})

	s.Run("credential failure passes through and is audited", func() {
		s.registerAlice()
		before := len(s.events.Events())

		_, err := s.server.LoginWithService(s.ctx, "password", loginParams("alice", "wrong"), models.ConnectionInfo{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAuthenticationFailed))

		events := s.events.Events()
		s.Require().Greater(len(events), before)
		s.Equal(audit.ActionLoginFailure, events[len(events)-1].Action)
	})

	s.Run("service returning no user is an authentication failure", func() {
		server, err := New(Options{TokenSecret: "test-secret"}, s.store,
			map[string]IdentityService{"null": nullService{}})
		s.Require().NoError(err)

		_, err = server.LoginWithService(s.ctx, "null", json.RawMessage(`{}`), models.ConnectionInfo{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAuthenticationFailed))
		s.Contains(err.Error(), "Service null was not able to authenticate user")
	})
}

// nullService authenticates nobody without erroring.
type nullService struct{}

func (nullService) Authenticate(context.Context, json.RawMessage) (*models.User, error) {
	return nil, nil
}

func (nullService) SetStore(store.Store) {}

func (s *ServerSuite) TestLoginWithUser() {
	s.Run("nil user is rejected", func() {
		_, err := s.server.LoginWithUser(s.ctx, nil, models.ConnectionInfo{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("trusted login mints resumable tokens", func() {
		id := s.registerAlice()
		user, err := s.store.FindUserByID(s.ctx, id)
		s.Require().NoError(err)

		result, err := s.server.LoginWithUser(s.ctx, user, models.ConnectionInfo{})
		s.Require().NoError(err)

		resumed, err := s.server.ResumeSession(s.ctx, result.Tokens.AccessToken)
		s.Require().NoError(err)
		s.Equal(id, resumed.ID)
		s.Nil(resumed.Services)
	})
}

func (s *ServerSuite) TestResumeSession() {
	login := func() *models.LoginResult {
		s.registerAlice()
		result, err := s.server.LoginWithService(s.ctx, "password", loginParams("alice", "s3cret!"), models.ConnectionInfo{})
		s.Require().NoError(err)
		return result
	}

	s.Run("garbage token is invalid", func() {
		_, err := s.server.ResumeSession(s.ctx, "not-a-token")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	s.Run("invalidated session resumes to no user without error", func() {
		result := login()
		s.Require().NoError(s.store.InvalidateSession(s.ctx, result.SessionID))

		user, err := s.server.ResumeSession(s.ctx, result.Tokens.AccessToken)
		s.Require().NoError(err)
		s.Nil(user)
	})

	s.Run("deleted session is not found", func() {
		result := login()
		s.Require().NoError(s.store.DeleteSession(s.ctx, result.SessionID))

		_, err := s.server.ResumeSession(s.ctx, result.Tokens.AccessToken)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Contains(err.Error(), "Session not found")
	})

	s.Run("validator hook can veto resumption", func() {
		vetoed := s.newServer(Options{
			TokenSecret: "test-secret",
			ResumeSessionValidator: func(context.Context, *models.User, *models.Session) error {
				return dErrors.New(dErrors.CodeUnauthorized, "account suspended")
			},
		})
		result := login()

		_, err := vetoed.ResumeSession(s.ctx, result.Tokens.AccessToken)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServerSuite) TestRefreshTokens() {
	s.Run("both tokens are required", func() {
		_, err := s.server.RefreshTokens(s.ctx, "", "", models.ConnectionInfo{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	s.Run("expired access token with a live refresh token renews the pair", func() {
		shortLived := s.newServer(Options{
			TokenSecret:           "test-secret",
			AccessTokenExpiration: -time.Minute,
		})
		s.registerAlice()
		result, err := shortLived.LoginWithService(s.ctx, "password", loginParams("alice", "s3cret!"), models.ConnectionInfo{})
		s.Require().NoError(err)

		_, err = shortLived.ResumeSession(s.ctx, result.Tokens.AccessToken)
		s.Require().Error(err)

		renewed, err := shortLived.RefreshTokens(s.ctx, result.Tokens.AccessToken, result.Tokens.RefreshToken, models.ConnectionInfo{IP: "198.51.100.9"})
		s.Require().NoError(err)
		s.Equal(result.SessionID, renewed.SessionID)

		session, err := s.store.FindSessionByID(s.ctx, renewed.SessionID)
		s.Require().NoError(err)
		s.Equal("198.51.100.9", session.IP)
	})

	s.Run("invalidated session cannot be refreshed", func() {
		s.registerAlice()
		result, err := s.server.LoginWithService(s.ctx, "password", loginParams("alice", "s3cret!"), models.ConnectionInfo{})
		s.Require().NoError(err)
		s.Require().NoError(s.store.InvalidateSession(s.ctx, result.SessionID))

		_, err = s.server.RefreshTokens(s.ctx, result.Tokens.AccessToken, result.Tokens.RefreshToken, models.ConnectionInfo{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Contains(err.Error(), "Session is no longer valid")
	})

	s.Run("foreign access token is refused even unexpired", func() {
		s.registerAlice()
		result, err := s.server.LoginWithService(s.ctx, "password", loginParams("alice", "s3cret!"), models.ConnectionInfo{})
		s.Require().NoError(err)

		other := s.newServer(Options{TokenSecret: "other-secret"})
		_, err = other.RefreshTokens(s.ctx, result.Tokens.AccessToken, result.Tokens.RefreshToken, models.ConnectionInfo{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})
}

func (s *ServerSuite) TestLogout() {
	s.Run("logout invalidates the session once", func() {
		s.registerAlice()
		result, err := s.server.LoginWithService(s.ctx, "password", loginParams("alice", "s3cret!"), models.ConnectionInfo{})
		s.Require().NoError(err)

		s.Require().NoError(s.server.Logout(s.ctx, result.Tokens.AccessToken))

		user, err := s.server.ResumeSession(s.ctx, result.Tokens.AccessToken)
		s.Require().NoError(err)
		s.Nil(user)

		err = s.server.Logout(s.ctx, result.Tokens.AccessToken)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestSanitizeUser(t *testing.T) {
	if SanitizeUser(nil) != nil {
		t.Fatal("nil user must sanitize to nil")
	}
	user := &models.User{
		ID:       "u1",
		Username: "alice",
		Services: map[string]map[string]any{"password": {"bcrypt": "$2a$..."}},
	}
	sanitized := SanitizeUser(user)
	if sanitized.Services != nil {
		t.Fatal("sanitized user must not carry service data")
	}
	if user.Services == nil {
		t.Fatal("sanitizing must not mutate the original record")
	}
}
