// Package sessioncache wraps a storage adapter with a Redis read-through
// cache for session lookups, the hottest path in the server (every
// authenticated request resumes a session). Writes go through to the inner
// adapter and keep the cache coherent.
package sessioncache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"accounts/internal/accounts/models"
	"accounts/internal/accounts/store"
)

const (
	sessionKeyPrefix  = "accounts:session:"
	userSessionsKey   = "accounts:user-sessions:"
	defaultSessionTTL = 5 * time.Minute
)

// Store decorates an inner adapter. All non-session methods pass through
// untouched via embedding.
type Store struct {
	store.Store
	cache  redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// Option adjusts construction.
type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New wraps inner with the session cache.
func New(inner store.Store, cache redis.UniversalClient, opts ...Option) *Store {
	s := &Store{Store: inner, cache: cache, ttl: defaultSessionTTL, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) CreateSession(ctx context.Context, userID, ip, userAgent string) (string, error) {
	sessionID, err := s.Store.CreateSession(ctx, userID, ip, userAgent)
	if err != nil {
		return "", err
	}
	// Track the user's session ids so a bulk invalidation can purge them.
	if err := s.cache.SAdd(ctx, userSessionsKey+userID, sessionID).Err(); err != nil {
		s.logWarn(ctx, "could not track session id", err)
	}
	return sessionID, nil
}

func (s *Store) FindSessionByID(ctx context.Context, sessionID string) (*models.Session, error) {
	if payload, err := s.cache.Get(ctx, sessionKeyPrefix+sessionID).Bytes(); err == nil {
		var session models.Session
		if err := json.Unmarshal(payload, &session); err == nil {
			return &session, nil
		}
	} else if err != redis.Nil {
		s.logWarn(ctx, "session cache read failed", err)
	}

	session, err := s.Store.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.put(ctx, session)
	return session, nil
}

func (s *Store) UpdateSession(ctx context.Context, sessionID, ip, userAgent string) error {
	if err := s.Store.UpdateSession(ctx, sessionID, ip, userAgent); err != nil {
		return err
	}
	s.drop(ctx, sessionID)
	return nil
}

func (s *Store) InvalidateSession(ctx context.Context, sessionID string) error {
	if err := s.Store.InvalidateSession(ctx, sessionID); err != nil {
		return err
	}
	s.drop(ctx, sessionID)
	return nil
}

func (s *Store) InvalidateAllSessions(ctx context.Context, userID string) error {
	if err := s.Store.InvalidateAllSessions(ctx, userID); err != nil {
		return err
	}
	ids, err := s.cache.SMembers(ctx, userSessionsKey+userID).Result()
	if err != nil {
		s.logWarn(ctx, "could not list tracked sessions", err)
		return nil
	}
	for _, id := range ids {
		s.drop(ctx, id)
	}
	if err := s.cache.Del(ctx, userSessionsKey+userID).Err(); err != nil {
		s.logWarn(ctx, "could not clear session tracking", err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, session *models.Session) {
	payload, err := json.Marshal(session)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+session.ID, payload, s.ttl).Err(); err != nil {
		s.logWarn(ctx, "session cache write failed", err)
	}
}

func (s *Store) drop(ctx context.Context, sessionID string) {
	if err := s.cache.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		s.logWarn(ctx, "session cache drop failed", err)
	}
}

func (s *Store) logWarn(ctx context.Context, msg string, err error) {
	s.logger.WarnContext(ctx, msg, "error", err.Error())
}
