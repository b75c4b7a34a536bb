// Package password implements the password credential service: user
// registration, password verification, and the sanctioned mutation paths
// for usernames and email addresses.
package password

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"accounts/internal/accounts/models"
	"accounts/internal/accounts/store"
	dErrors "accounts/pkg/domain-errors"
	"accounts/pkg/platform/sentinel"
	"accounts/pkg/secrets"
)

// ServiceName is the registry key under which this service authenticates.
const ServiceName = "password"

// Service orchestrates user lookup, credential verification and user
// creation on top of a storage adapter. The adapter is injected by the
// accounts server after construction.
type Service struct {
	options Options
	store   store.Store
	logger  *slog.Logger
}

// Option adjusts construction.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New validates options and builds the service. The storage adapter arrives
// later through SetStore.
func New(options Options, opts ...Option) (*Service, error) {
	options.applyDefaults()
	if options.HashAlgorithm != "" && !options.HashAlgorithm.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported hash algorithm %q", options.HashAlgorithm)
	}
	s := &Service{options: options, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SetStore injects the shared storage adapter. Called once by the accounts
// server during registration.
func (s *Service) SetStore(st store.Store) {
	s.store = st
}

// Authenticate satisfies the identity-service contract: params is the raw
// JSON login request. It is the only entry point the accounts server calls.
func (s *Service) Authenticate(ctx context.Context, params json.RawMessage) (*models.User, error) {
	var login models.PasswordLoginParams
	if err := json.Unmarshal(params, &login); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "Match failed")
	}
	return s.AuthenticateCredentials(ctx, login)
}

// AuthenticateCredentials resolves the login identity, verifies the
// password and returns the full user record. Sanitization is the
// orchestrator's job.
func (s *Service) AuthenticateCredentials(ctx context.Context, params models.PasswordLoginParams) (*models.User, error) {
	if (params.User == models.UserIdentity{}) || params.Password.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Unrecognized options for login request")
	}

	user, err := s.resolveUser(ctx, params.User)
	if err != nil {
		return nil, err
	}

	hash, err := s.store.FindPasswordHash(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNoPassword, "User has no password set")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load password hash")
	}

	candidate, err := s.preparePassword(params.Password)
	if err != nil {
		return nil, err
	}
	if !secrets.Verify(candidate, hash) {
		return nil, dErrors.New(dErrors.CodeAuthenticationFailed, "Incorrect password")
	}

	return user, nil
}

// resolveUser maps a login identity onto exactly one lookup: id first, then
// username, then email. A free-form string is disambiguated by the email
// pattern.
func (s *Service) resolveUser(ctx context.Context, identity models.UserIdentity) (*models.User, error) {
	id, username, email := identity.ID, identity.Username, identity.Email
	if identity.Raw != "" && id == "" && username == "" && email == "" {
		if IsEmail(identity.Raw) {
			email = identity.Raw
		} else {
			username = identity.Raw
		}
	}

	var (
		user *models.User
		err  error
	)
	switch {
	case id != "":
		user, err = s.store.FindUserByID(ctx, id)
	case username != "":
		user, err = s.store.FindUserByUsername(ctx, username)
	case email != "":
		user, err = s.store.FindUserByEmail(ctx, strings.ToLower(email))
	default:
		return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not look up user")
	}
	return user, nil
}

// preparePassword reduces the wire password to the string fed into the slow
// hash: the configured digest of a plaintext secret, a client-side digest
// (whose algorithm must match the configuration), or the raw plaintext when
// no algorithm is configured.
func (s *Service) preparePassword(p models.Password) (string, error) {
	alg := s.options.HashAlgorithm
	if p.Digest != "" {
		if alg == "" || p.Algorithm != alg {
			return "", dErrors.New(dErrors.CodeValidation, "Invalid password digest algorithm")
		}
		return p.Digest, nil
	}
	if alg != "" {
		return secrets.Digest(p.Plain, alg)
	}
	return p.Plain, nil
}

// hashPassword runs the full digest-then-bcrypt pipeline for storage.
func (s *Service) hashPassword(p models.Password) (string, error) {
	prepared, err := s.preparePassword(p)
	if err != nil {
		return "", err
	}
	return secrets.Hash(prepared, s.options.BcryptCost)
}
