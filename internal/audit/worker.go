package audit

import (
	"context"
	"fmt"
	"log/slog"
)

// Buffered is a Store whose writes are handed off through a channel for a
// background Worker to persist; reads go straight to the underlying store.
// Append never blocks: when the inbox is full the event is dropped with an
// error, which the publisher logs.
type Buffered struct {
	Store
	inbox chan<- Event
}

func NewBuffered(store Store, inbox chan<- Event) *Buffered {
	return &Buffered{Store: store, inbox: inbox}
}

func (b *Buffered) Append(_ context.Context, event Event) error {
	select {
	case b.inbox <- event:
		return nil
	default:
		return fmt.Errorf("audit inbox full, dropping %s event", event.Type)
	}
}

// Worker drains buffered audit events into the store. Like the publisher it
// never fails a request over its trail: append errors are logged and the
// loop keeps running. On shutdown it flushes whatever is still buffered
// before returning.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) flush(ctx context.Context) {
	for {
		select {
		case event := <-w.inbox:
			w.append(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "failed to persist audit event",
			"type", event.Type,
			"entity_id", event.EntityID,
			"error", err,
		)
	}
}
