// Package models holds the identity records shared by the accounts
// orchestrator, the credential services, and the storage adapters.
package models

import (
	"encoding/json"
	"time"

	"accounts/pkg/secrets"
)

// User is the primary identity record. Username and Email, when present,
// are unique across all users in storage; Email is normalized to lowercase
// at write time. Services maps identity-service names to service-private
// data (password hash, provider ids) and must never leave the trust
// boundary unsanitized.
type User struct {
	ID       string                    `json:"id"`
	Username string                    `json:"username,omitempty"`
	Email    string                    `json:"email,omitempty"`
	Emails   []EmailRecord             `json:"emails,omitempty"`
	Profile  map[string]any            `json:"profile,omitempty"`
	Services map[string]map[string]any `json:"services,omitempty"`
}

// EmailRecord is an additional address attached to a user.
type EmailRecord struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

// Session records one authenticated login instance. Valid transitions from
// true to false exactly once and never back.
type Session struct {
	ID        string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Valid     bool      `json:"valid"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tokens bundles the signed artifacts handed to a client after login.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is returned by every successful login path. User is already
// sanitized.
type LoginResult struct {
	SessionID string `json:"sessionId"`
	User      *User  `json:"user"`
	Tokens    Tokens `json:"tokens"`
}

// ConnectionInfo carries optional client metadata captured at login.
type ConnectionInfo struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Password is either a plaintext secret or a client-side pre-digested
// {digest, algorithm} pair. Pre-digesting reduces plaintext exposure in
// transit without weakening server-side storage cost.
type Password struct {
	Plain     string
	Digest    string
	Algorithm secrets.Algorithm
}

// IsZero reports whether no password was supplied at all.
func (p Password) IsZero() bool {
	return p.Plain == "" && p.Digest == ""
}

// UnmarshalJSON accepts both wire shapes: a bare JSON string and an object
// {"digest": "...", "algorithm": "..."}.
func (p *Password) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*p = Password{Plain: plain}
		return nil
	}
	var pair struct {
		Digest    string            `json:"digest"`
		Algorithm secrets.Algorithm `json:"algorithm"`
	}
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	*p = Password{Digest: pair.Digest, Algorithm: pair.Algorithm}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON so params survive a round trip.
func (p Password) MarshalJSON() ([]byte, error) {
	if p.Digest != "" {
		return json.Marshal(struct {
			Digest    string            `json:"digest"`
			Algorithm secrets.Algorithm `json:"algorithm"`
		}{p.Digest, p.Algorithm})
	}
	return json.Marshal(p.Plain)
}

// CreateUser is the candidate record handed to a credential service on
// registration.
type CreateUser struct {
	Username string         `json:"username,omitempty"`
	Email    string         `json:"email,omitempty"`
	Password Password       `json:"password,omitempty"`
	Profile  map[string]any `json:"profile,omitempty"`
}

// UserIdentity designates which user a login attempt targets: a free-form
// string (disambiguated into username or email by the credential service)
// or an explicit id/username/email selector.
type UserIdentity struct {
	Raw      string
	ID       string
	Username string
	Email    string
}

// UnmarshalJSON accepts a bare string or {"id"|"username"|"email": ...}.
func (u *UserIdentity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*u = UserIdentity{Raw: raw}
		return nil
	}
	var selector struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.Unmarshal(data, &selector); err != nil {
		return err
	}
	*u = UserIdentity{ID: selector.ID, Username: selector.Username, Email: selector.Email}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (u UserIdentity) MarshalJSON() ([]byte, error) {
	if u.Raw != "" {
		return json.Marshal(u.Raw)
	}
	return json.Marshal(struct {
		ID       string `json:"id,omitempty"`
		Username string `json:"username,omitempty"`
		Email    string `json:"email,omitempty"`
	}{u.ID, u.Username, u.Email})
}

// PasswordLoginParams is the wire shape of a password authentication
// request.
type PasswordLoginParams struct {
	User     UserIdentity `json:"user"`
	Password Password     `json:"password"`
}
