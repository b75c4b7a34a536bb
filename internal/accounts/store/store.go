// Package store defines the storage adapter contract consumed by the
// credential services and the accounts orchestrator. Adapters own all
// persistent state; the core only reaches it through this interface.
package store

import (
	"context"

	"accounts/internal/accounts/models"
)

// NewUser is the persistence-ready candidate a credential service hands to
// the adapter: the password, when present, is already the storage-safe hash.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Profile      map[string]any
}

// Store is the full adapter contract. Every method takes a context and
// reports "no such record" with sentinel.ErrNotFound, never a panic; other
// errors are genuine storage failures. Transient-failure retries are the
// adapter's concern and invisible to callers.
type Store interface {
	UserStore
	PasswordStore
	EmailStore
	SessionStore
}

// UserStore covers identity lookup and the generic user mutations.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByServiceID(ctx context.Context, service, id string) (*models.User, error)

	CreateUser(ctx context.Context, user NewUser) (string, error)
	SetUsername(ctx context.Context, userID, username string) error
	SetProfile(ctx context.Context, userID string, profile map[string]any) error
	SetService(ctx context.Context, userID, service string, data map[string]any) error
}

// PasswordStore covers the password credential record and its reset flow
// bookkeeping.
type PasswordStore interface {
	FindPasswordHash(ctx context.Context, userID string) (string, error)
	SetPassword(ctx context.Context, userID, newHash string) error
	FindUserByResetPasswordToken(ctx context.Context, token string) (*models.User, error)
	AddResetPasswordToken(ctx context.Context, userID, email, token, reason string) error
	SetResetPassword(ctx context.Context, userID, email, newHash, token string) error
}

// EmailStore covers additional-address management and verification
// bookkeeping.
type EmailStore interface {
	AddEmail(ctx context.Context, userID, newEmail string, verified bool) error
	RemoveEmail(ctx context.Context, userID, email string) error
	VerifyEmail(ctx context.Context, userID, email string) error
	FindUserByEmailVerificationToken(ctx context.Context, token string) (*models.User, error)
	AddEmailVerificationToken(ctx context.Context, userID, email, token string) error
}

// SessionStore covers session lifecycle. Session ids are adapter-generated
// and opaque to the core. InvalidateSession is one-way: a session never
// becomes valid again.
type SessionStore interface {
	CreateSession(ctx context.Context, userID, ip, userAgent string) (string, error)
	FindSessionByID(ctx context.Context, sessionID string) (*models.Session, error)
	UpdateSession(ctx context.Context, sessionID, ip, userAgent string) error
	InvalidateSession(ctx context.Context, sessionID string) error
	InvalidateAllSessions(ctx context.Context, userID string) error
}
