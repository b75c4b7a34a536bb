package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounts/internal/accounts/models"
	"accounts/pkg/attrs"
	dErrors "accounts/pkg/domain-errors"
)

type logRecord struct {
	msg   string
	attrs []any
}

// recordingHandler captures slog records so tests can assert on attributes.
type recordingHandler struct {
	mu      sync.Mutex
	records []logRecord
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := logRecord{msg: r.Message}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs = append(rec.attrs, a.Key, a.Value.Any())
		return true
	})
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestRequestID(t *testing.T) {
	t.Run("generates and echoes an id", func(t *testing.T) {
		var captured string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		})
		rec := httptest.NewRecorder()
		RequestID(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, captured)
		assert.Equal(t, captured, rec.Header().Get("X-Request-Id"))
	})

	t.Run("reuses an incoming id", func(t *testing.T) {
		var captured string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", "req-42")
		RequestID(next).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "req-42", captured)
	})
}

func TestRequestLogger(t *testing.T) {
	handler := &recordingHandler{}
	logger := slog.New(handler)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	chain := RequestID(RequestLogger(logger)(next))
	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/accounts/user", nil))

	require.Len(t, handler.records, 1)
	record := handler.records[0]
	assert.Equal(t, "http request", record.msg)
	assert.Equal(t, "/accounts/user", attrs.ExtractString(record.attrs, "path"))
	assert.Equal(t, "GET", attrs.ExtractString(record.attrs, "method"))
	assert.NotEmpty(t, attrs.ExtractString(record.attrs, "request_id"))
}

func TestRecovery(t *testing.T) {
	logger := slog.New(&recordingHandler{})
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	Recovery(logger)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type stubResumer struct {
	user *models.User
	err  error
}

func (s stubResumer) ResumeSession(context.Context, string) (*models.User, error) {
	return s.user, s.err
}

func TestRequireSession(t *testing.T) {
	logger := slog.New(&recordingHandler{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		require.NotNil(t, user)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireSession(stubResumer{}, logger)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is unauthorized", func(t *testing.T) {
		resumer := stubResumer{err: dErrors.New(dErrors.CodeInvalidToken, "Tokens are not valid")}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AccessTokenHeader, "bad-token")

		rec := httptest.NewRecorder()
		RequireSession(resumer, logger)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalidated session is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AccessTokenHeader, "stale-token")

		rec := httptest.NewRecorder()
		RequireSession(stubResumer{}, logger)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("live session passes the user through", func(t *testing.T) {
		resumer := stubResumer{user: &models.User{ID: "u1", Username: "alice"}}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good-token")

		rec := httptest.NewRecorder()
		RequireSession(resumer, logger)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
