// Package service implements the accounts orchestrator: it owns the
// registry of identity services, drives the session lifecycle, and is the
// only place tokens are minted. Credential verification itself is delegated
// to the registered services.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"accounts/internal/accounts/models"
	"accounts/internal/accounts/store"
	"accounts/internal/audit"
	jwttoken "accounts/internal/jwt_token"
	"accounts/internal/platform/metrics"
	dErrors "accounts/pkg/domain-errors"
)

// IdentityService is a pluggable authentication strategy. Params is the raw
// JSON login request; the service owns its shape. Authenticate returns the
// full unsanitized user on success, an error on refusal, and must not
// return (nil, nil).
type IdentityService interface {
	Authenticate(ctx context.Context, params json.RawMessage) (*models.User, error)
	SetStore(st store.Store)
}

// ResumeSessionValidator runs after a session resolves to a valid user and
// may veto the resumption.
type ResumeSessionValidator func(ctx context.Context, user *models.User, session *models.Session) error

// Options configures the orchestrator. TokenSecret is the only required
// field.
type Options struct {
	TokenSecret            string
	Issuer                 string
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	ResumeSessionValidator ResumeSessionValidator
}

func (o *Options) applyDefaults() {
	if o.Issuer == "" {
		o.Issuer = "accounts"
	}
	if o.AccessTokenExpiration == 0 {
		o.AccessTokenExpiration = 90 * time.Minute
	}
	if o.RefreshTokenExpiration == 0 {
		o.RefreshTokenExpiration = 7 * 24 * time.Hour
	}
}

// Server ties the identity services, the storage adapter, and the token
// codec together. All login and session operations go through it.
type Server struct {
	options  Options
	store    store.Store
	services map[string]IdentityService
	tokens   *jwttoken.Service
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    *audit.Publisher
	tracer   trace.Tracer
}

// Option adjusts construction.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Server) { s.audit = p }
}

// New builds the orchestrator and injects the shared storage adapter into
// every registered identity service.
func New(options Options, st store.Store, services map[string]IdentityService, opts ...Option) (*Server, error) {
	if options.TokenSecret == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "token secret is required")
	}
	options.applyDefaults()

	s := &Server{
		options:  options,
		store:    st,
		services: services,
		tokens:   jwttoken.NewService(options.TokenSecret, options.Issuer),
		logger:   slog.Default(),
		tracer:   otel.Tracer("accounts.server"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	for _, svc := range services {
		svc.SetStore(st)
	}
	return s, nil
}

// Store exposes the shared adapter for wiring outside the login paths.
func (s *Server) Store() store.Store {
	return s.store
}

// SanitizeUser strips service-private data before a user record leaves the
// trust boundary. Every public return path goes through it.
func SanitizeUser(user *models.User) *models.User {
	if user == nil {
		return nil
	}
	sanitized := *user
	sanitized.Services = nil
	return &sanitized
}
