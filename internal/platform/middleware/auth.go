package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"accounts/internal/accounts/models"
)

// AccessTokenHeader is the dedicated header clients may use instead of an
// Authorization bearer token.
const AccessTokenHeader = "accounts-access-token"

// SessionResumer resolves an access token to its sanitized user.
type SessionResumer interface {
	ResumeSession(ctx context.Context, accessToken string) (*models.User, error)
}

type contextKeyUser struct{}

// GetUser retrieves the authenticated user from the context. Nil when the
// request carried no usable session.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(contextKeyUser{}).(*models.User); ok {
		return user
	}
	return nil
}

// WithUser injects an authenticated user into a context. Useful for handler
// tests that skip the middleware chain.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, contextKeyUser{}, user)
}

// AccessTokenFromRequest extracts the access token from the dedicated
// header or an Authorization bearer token. Empty when neither is present.
func AccessTokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(AccessTokenHeader); token != "" {
		return token
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// RequireSession resumes the session carried by the request and stores the
// user in the context. Requests without a live session get a 401.
func RequireSession(resumer SessionResumer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := AccessTokenFromRequest(r)
			if token == "" {
				unauthorized(ctx, w, logger, "Missing access token")
				return
			}

			user, err := resumer.ResumeSession(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "session resumption failed",
					"error", err.Error(),
					"request_id", GetRequestID(ctx),
				)
				unauthorized(ctx, w, logger, "Tokens are not valid")
				return
			}
			if user == nil {
				unauthorized(ctx, w, logger, "Session is no longer valid")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
		})
	}
}

func unauthorized(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"message":"` + message + `","errorCode":"unauthorized"}`)); err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(ctx),
		)
	}
}
