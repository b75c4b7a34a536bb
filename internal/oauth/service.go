// Package oauth implements the provider-delegating identity service: a
// provider callback exchanges the request params for an external profile,
// and the service links that profile to a local user, creating one on first
// sight.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"accounts/internal/accounts/models"
	"accounts/internal/accounts/store"
	dErrors "accounts/pkg/domain-errors"
	"accounts/pkg/email"
	"accounts/pkg/platform/sentinel"
)

// ServiceName is the registry key under which this service authenticates.
const ServiceName = "oauth"

// ExternalUser is the normalized profile a provider returns. ID is the
// provider-scoped subject and must be stable across logins.
type ExternalUser struct {
	ID      string
	Email   string
	Profile map[string]any
}

// UserProvider exchanges provider-specific params (an access token, a code)
// for the external profile.
type UserProvider func(ctx context.Context, params json.RawMessage) (*ExternalUser, error)

// LoginParams is the wire shape of an oauth authentication request. The
// fields beyond Provider stay raw; each provider owns its own shape.
type LoginParams struct {
	Provider string `json:"provider"`
}

// Service resolves external profiles to local users.
type Service struct {
	providers map[string]UserProvider
	store     store.Store
	logger    *slog.Logger
}

// Option adjusts construction.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New builds the service around a provider registry, keyed by the provider
// name clients send.
func New(providers map[string]UserProvider, opts ...Option) *Service {
	s := &Service{providers: providers, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SetStore injects the shared storage adapter. Called once by the accounts
// server during registration.
func (s *Service) SetStore(st store.Store) {
	s.store = st
}

// Authenticate satisfies the identity-service contract. It delegates to the
// named provider, then finds or creates the local user: provider-scoped id
// first, verified email as the fallback link, a fresh record otherwise.
func (s *Service) Authenticate(ctx context.Context, params json.RawMessage) (*models.User, error) {
	var login LoginParams
	if err := json.Unmarshal(params, &login); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "Invalid provider")
	}
	provider, ok := s.providers[login.Provider]
	if login.Provider == "" || !ok {
		return nil, dErrors.New(dErrors.CodeUnknownService, "Invalid provider")
	}

	external, err := provider(ctx, params)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuthenticationFailed, "provider rejected the request")
	}
	if external == nil || external.ID == "" {
		return nil, dErrors.New(dErrors.CodeAuthenticationFailed, "provider returned no subject")
	}

	user, err := s.resolveUser(ctx, login.Provider, external)
	if err != nil {
		return nil, err
	}

	serviceData := map[string]any{"id": external.ID}
	if external.Email != "" {
		serviceData["email"] = external.Email
	}
	if err := s.store.SetService(ctx, user.ID, login.Provider, serviceData); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not link provider identity")
	}
	return user, nil
}

func (s *Service) resolveUser(ctx context.Context, providerName string, external *ExternalUser) (*models.User, error) {
	user, err := s.store.FindUserByServiceID(ctx, providerName, external.ID)
	if err == nil {
		if len(external.Profile) > 0 {
			if err := s.store.SetProfile(ctx, user.ID, external.Profile); err != nil {
				s.logger.WarnContext(ctx, "could not refresh oauth profile",
					"provider", providerName,
					"error", err.Error(),
				)
			}
		}
		return user, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not look up provider identity")
	}

	if external.Email != "" {
		user, err = s.store.FindUserByEmail(ctx, strings.ToLower(external.Email))
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not look up user by email")
		}
	}

	profile := external.Profile
	if len(profile) == 0 && external.Email != "" {
		first, last := email.DeriveNameFromEmail(external.Email)
		profile = map[string]any{"firstName": first, "lastName": last}
	}
	id, err := s.store.CreateUser(ctx, store.NewUser{
		Email:   strings.ToLower(external.Email),
		Profile: profile,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create user for provider identity")
	}
	user, err = s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load created user")
	}
	return user, nil
}
