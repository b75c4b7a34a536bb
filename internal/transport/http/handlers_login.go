package httptransport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"accounts/internal/accounts/models"
	"accounts/internal/oauth"
	"accounts/internal/platform/middleware"
	dErrors "accounts/pkg/domain-errors"
	"accounts/pkg/platform/middleware/metadata"
)

func connectionInfo(r *http.Request) models.ConnectionInfo {
	return models.ConnectionInfo{
		IP:        metadata.GetClientIP(r.Context()),
		UserAgent: metadata.GetUserAgent(r.Context()),
	}
}

// handleAuthenticate logs in against the identity service named in the
// path. The body is handed to the service verbatim; each service owns its
// own params shape.
func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serviceName := chi.URLParam(r, "service")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read request body"))
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := h.server.LoginWithService(ctx, serviceName, body, connectionInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleOAuthCallback folds the provider name and callback query params
// into oauth login params and delegates to the oauth identity service.
func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := map[string]string{"provider": chi.URLParam(r, "provider")}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	body, err := json.Marshal(params)
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not encode oauth params"))
		return
	}

	result, err := h.server.LoginWithService(ctx, oauth.ServiceName, body, connectionInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRefreshTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.server.RefreshTokens(ctx, req.AccessToken, req.RefreshToken, connectionInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := middleware.AccessTokenFromRequest(r)
	if token == "" {
		var req struct {
			AccessToken string `json:"accessToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = req.AccessToken
		}
	}

	if err := h.server.Logout(ctx, token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// handleUser returns the authenticated user. RequireSession already
// resumed the session and sanitized the record.
func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}
