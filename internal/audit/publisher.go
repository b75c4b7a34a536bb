package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher stamps and forwards audit events. Audit failures are logged and
// swallowed: an unavailable sink must never fail a login.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, logger: logger}
}

// Emit stamps the event with an id and timestamp and appends it. A nil
// publisher or nil store is a no-op so callers never need a guard.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil || p.store == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "failed to append audit event",
			"action", string(event.Action),
			"error", err.Error(),
		)
	}
}
