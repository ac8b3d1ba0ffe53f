package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"fedreg/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and uses the
// store for persistence so tests can swap sinks easily. Audit failures are
// logged, never propagated: a query must not fail because its trail could
// not be written.
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

// Emit stamps identity and request metadata onto the event and appends it.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil || p.store == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to append audit event",
			"type", event.Type,
			"entity_id", event.EntityID,
			"error", err,
		)
	}
}

// ListByEntity returns the trail for one entity, newest first.
func (p *Publisher) ListByEntity(ctx context.Context, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, entityID)
}

// ListRecent returns up to limit events across all entities, newest first.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, limit)
}
