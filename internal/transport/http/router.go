// Package httptransport is the chi REST binding for the accounts server.
// Handlers stay thin: decode, delegate, translate errors into the JSON
// envelope.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"accounts/internal/accounts/service"
	"accounts/internal/password"
	"accounts/internal/platform/middleware"
	"accounts/pkg/platform/middleware/metadata"
)

// Handler bundles the services the REST binding exposes.
type Handler struct {
	server   *service.Server
	password *password.Service
	logger   *slog.Logger
}

func NewHandler(server *service.Server, pw *password.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{server: server, password: pw, logger: logger}
}

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(metadata.ClientMetadata)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/authenticate/{service}", h.handleAuthenticate)
		r.Get("/oauth/{provider}/callback", h.handleOAuthCallback)
		r.Post("/refreshTokens", h.handleRefreshTokens)
		r.Post("/logout", h.handleLogout)

		r.Post("/register/password", h.handleRegisterPassword)
		r.Post("/password/resetPassword", h.handleResetPassword)
		r.Post("/password/verifyEmail", h.handleVerifyEmail)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(h.server, h.logger))
			r.Get("/user", h.handleUser)
		})
	})

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
