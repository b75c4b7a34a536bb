// Package audit records security-relevant account events: logins, logouts,
// registrations. Events are append-only; the sink decides durability.
package audit

import (
	"context"
	"time"
)

// Action names an auditable event.
type Action string

const (
	ActionLoginSuccess Action = "login.success"
	ActionLoginFailure Action = "login.failure"
	ActionLogout       Action = "logout"
	ActionUserCreated  Action = "user.created"
)

// Event is one audit record. Detail carries free-form context (identity
// service name, error code) and must never contain credentials.
type Event struct {
	ID        string            `json:"id"`
	Action    Action            `json:"action"`
	Service   string            `json:"service,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Device    string            `json:"device,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Store is an append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
