package password

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"accounts/internal/accounts/models"
	"accounts/internal/accounts/store"
	"accounts/internal/accounts/store/memory"
	dErrors "accounts/pkg/domain-errors"
	"accounts/pkg/secrets"
)

type PasswordServiceSuite struct {
	suite.Suite
	svc   *Service
	store *memory.Store
	ctx   context.Context
}

func (s *PasswordServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	svc, err := New(Options{BcryptCost: 4})
	s.Require().NoError(err)
	svc.SetStore(s.store)
	s.svc = svc
}

func TestPasswordServiceSuite(t *testing.T) {
	suite.Run(t, new(PasswordServiceSuite))
}

// createAlice registers alice once per test; subtests sharing the suite
// store reuse the existing record.
func (s *PasswordServiceSuite) createAlice() string {
	if user, err := s.store.FindUserByUsername(s.ctx, "alice"); err == nil {
		return user.ID
	}
	id, err := s.svc.CreateUser(s.ctx, models.CreateUser{
		Username: "alice",
		Password: models.Password{Plain: "s3cret!"},
	})
	s.Require().NoError(err)
	return id
}

func (s *PasswordServiceSuite) TestCreateUser() {
	s.Run("username alone satisfies the at-least-one rule", func() {
		id, err := s.svc.CreateUser(s.ctx, models.CreateUser{Username: "bob"})
		s.Require().NoError(err)
		s.NotEmpty(id)
	})

	s.Run("empty candidate is rejected", func() {
		_, err := s.svc.CreateUser(s.ctx, models.CreateUser{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "Username or Email is required")
	})

	s.Run("whitespace-only fields count as absent", func() {
		_, err := s.svc.CreateUser(s.ctx, models.CreateUser{Username: "   ", Email: " \t"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("email is normalized to lowercase", func() {
		id, err := s.svc.CreateUser(s.ctx, models.CreateUser{Email: "Carol@Example.COM"})
		s.Require().NoError(err)

		user, err := s.store.FindUserByID(s.ctx, id)
		s.Require().NoError(err)
		s.Equal("carol@example.com", user.Email)
	})

	s.Run("duplicate username conflicts", func() {
		s.createAlice()
		_, err := s.svc.CreateUser(s.ctx, models.CreateUser{Username: "alice"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "Username already exists")
	})

	s.Run("duplicate email conflicts regardless of case", func() {
		_, err := s.svc.CreateUser(s.ctx, models.CreateUser{Email: "dave@example.com"})
		s.Require().NoError(err)
		_, err = s.svc.CreateUser(s.ctx, models.CreateUser{Email: "DAVE@example.com"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("short passwords fail the default validator", func() {
		_, err := s.svc.CreateUser(s.ctx, models.CreateUser{
			Username: "eve",
			Password: models.Password{Plain: "short"},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("ValidateNewUser hook can veto the candidate", func() {
		svc, err := New(Options{
			BcryptCost: 4,
			ValidateNewUser: func(_ context.Context, candidate store.NewUser) (bool, error) {
				return candidate.Username != "banned", nil
			},
		})
		s.Require().NoError(err)
		svc.SetStore(s.store)

		_, err = svc.CreateUser(s.ctx, models.CreateUser{Username: "banned"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "User invalid")

		_, err = svc.CreateUser(s.ctx, models.CreateUser{Username: "welcome"})
		s.Require().NoError(err)
	})

	s.Run("plaintext never reaches storage", func() {
		id := s.createAlice()
		hash, err := s.store.FindPasswordHash(s.ctx, id)
		s.Require().NoError(err)
		s.NotEqual("s3cret!", hash)
		s.NotContains(hash, "s3cret!")
	})
}

func (s *PasswordServiceSuite) TestAuthenticate() {
	s.Run("created credentials round trip", func() {
		id := s.createAlice()
		user, err := s.svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{
			User:     models.UserIdentity{Raw: "alice"},
			Password: models.Password{Plain: "s3cret!"},
		})
		s.Require().NoError(err)
		s.Equal(id, user.ID)
	})

	s.Run("wrong password is an authentication failure", func() {
		s.createAlice()
		_, err := s.svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{
			User:     models.UserIdentity{Raw: "alice"},
			Password: models.Password{Plain: "wrong"},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAuthenticationFailed))
		s.Contains(err.Error(), "Incorrect password")
	})

	s.Run("unknown user is not found", func() {
		_, err := s.svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{
			User:     models.UserIdentity{Raw: "ghost"},
			Password: models.Password{Plain: "whatever"},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("user without a stored credential is refused", func() {
		_, err := s.svc.CreateUser(s.ctx, models.CreateUser{Username: "nopass"})
		s.Require().NoError(err)

		_, err = s.svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{
			User:     models.UserIdentity{Raw: "nopass"},
			Password: models.Password{Plain: "whatever"},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNoPassword))
	})

	s.Run("free-form string holding an email resolves by email", func() {
		_, err := s.svc.CreateUser(s.ctx, models.CreateUser{
			Email:    "carol@example.com",
			Password: models.Password{Plain: "s3cret!"},
		})
		s.Require().NoError(err)

		user, err := s.svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{
			User:     models.UserIdentity{Raw: "Carol@Example.com"},
			Password: models.Password{Plain: "s3cret!"},
		})
		s.Require().NoError(err)
		s.Equal("carol@example.com", user.Email)
	})

	s.Run("id takes precedence over username and email", func() {
		id := s.createAlice()
		user, err := s.svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{
			User:     models.UserIdentity{ID: id, Username: "someone-else"},
			Password: models.Password{Plain: "s3cret!"},
		})
		s.Require().NoError(err)
		s.Equal(id, user.ID)
	})

	s.Run("missing user or password is unrecognized", func() {
		_, err := s.svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *PasswordServiceSuite) TestPreDigestedPasswords() {
	newDigestService := func() *Service {
		svc, err := New(Options{BcryptCost: 4, HashAlgorithm: secrets.SHA256})
		s.Require().NoError(err)
		svc.SetStore(memory.New())
		return svc
	}

	s.Run("client-side digest authenticates against server-side digest", func() {
		svc := newDigestService()
		_, err := svc.CreateUser(s.ctx, models.CreateUser{
			Username: "alice",
			Password: models.Password{Plain: "s3cret!"},
		})
		s.Require().NoError(err)

		digest, err := secrets.Digest("s3cret!", secrets.SHA256)
		s.Require().NoError(err)

		_, err = svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{
			User:     models.UserIdentity{Raw: "alice"},
			Password: models.Password{Digest: digest, Algorithm: secrets.SHA256},
		})
		s.Require().NoError(err)
	})

	s.Run("digest with mismatched algorithm is rejected", func() {
		svc := newDigestService()
		_, err := svc.CreateUser(s.ctx, models.CreateUser{
			Username: "alice",
			Password: models.Password{Plain: "s3cret!"},
		})
		s.Require().NoError(err)

		_, err = svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{
			User:     models.UserIdentity{Raw: "alice"},
			Password: models.Password{Digest: "abc123", Algorithm: secrets.MD5},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "Invalid password digest algorithm")
	})
}

func (s *PasswordServiceSuite) TestMutationPaths() {
	s.Run("set username validates before writing", func() {
		id := s.createAlice()
		s.Require().NoError(s.svc.SetUsername(s.ctx, id, "alice2"))

		err := s.svc.SetUsername(s.ctx, id, "9starts-with-digit")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("add and remove email", func() {
		id := s.createAlice()
		s.Require().NoError(s.svc.AddEmail(s.ctx, id, "Alice@Work.example", false))

		user, err := s.store.FindUserByEmail(s.ctx, "alice@work.example")
		s.Require().NoError(err)
		s.Equal(id, user.ID)

		s.Require().NoError(s.svc.RemoveEmail(s.ctx, id, "alice@work.example"))
		err = s.svc.RemoveEmail(s.ctx, id, "alice@work.example")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *PasswordServiceSuite) TestResetFlow() {
	s.Run("reset token replaces the credential and kills sessions", func() {
		_, err := s.svc.CreateUser(s.ctx, models.CreateUser{
			Email:    "carol@example.com",
			Password: models.Password{Plain: "oldpass!"},
		})
		s.Require().NoError(err)

		user, err := s.store.FindUserByEmail(s.ctx, "carol@example.com")
		s.Require().NoError(err)
		sid, err := s.store.CreateSession(s.ctx, user.ID, "", "")
		s.Require().NoError(err)

		token, err := s.svc.CreateResetPasswordToken(s.ctx, "carol@example.com")
		s.Require().NoError(err)
		s.Require().NoError(s.svc.ResetPassword(s.ctx, token, models.Password{Plain: "newpass!"}))

		_, err = s.svc.AuthenticateCredentials(s.ctx, models.PasswordLoginParams{
			User:     models.UserIdentity{Email: "carol@example.com"},
			Password: models.Password{Plain: "newpass!"},
		})
		s.Require().NoError(err)

		session, err := s.store.FindSessionByID(s.ctx, sid)
		s.Require().NoError(err)
		s.False(session.Valid)
	})

	s.Run("unknown reset token reads as expired link", func() {
		err := s.svc.ResetPassword(s.ctx, "bogus", models.Password{Plain: "newpass!"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("verification token marks the address verified", func() {
		id, err := s.svc.CreateUser(s.ctx, models.CreateUser{Email: "dave@example.com"})
		s.Require().NoError(err)

		token, err := s.svc.CreateEmailVerificationToken(s.ctx, id, "dave@example.com")
		s.Require().NoError(err)
		s.Require().NoError(s.svc.VerifyEmail(s.ctx, token))

		user, err := s.store.FindUserByID(s.ctx, id)
		s.Require().NoError(err)
		s.Require().NotEmpty(user.Emails)
		s.True(user.Emails[0].Verified)
	})
}

func TestDefaultValidateUsername(t *testing.T) {
	cases := []struct {
		username string
		valid    bool
	}{
		{"alice", true},
		{"Alice42", true},
		{"a", true},
		{"", false},
		{"   ", false},
		{"9lives", false},
		{"with space", false},
		{"dash-ed", false},
	}
	for _, tc := range cases {
		if got := defaultValidateUsername(tc.username); got != tc.valid {
			t.Errorf("defaultValidateUsername(%q) = %v, want %v", tc.username, got, tc.valid)
		}
	}
}
