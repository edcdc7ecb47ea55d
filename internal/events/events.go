// Package events carries workflow side effects (notifications and activity
// entries) through the outbox table.
//
// A workflow stages its side effects in a Batch and appends them in the
// same transaction as its primary write. After commit the Dispatcher
// delivers them inline; anything that fails stays pending for the relay.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lankyjo/coast/internal/db"
)

// Batch collects side effects for one workflow call.
type Batch struct {
	notifications []db.Notification
	activities    []db.Activity
}

// Notify stages a notification.
func (b *Batch) Notify(n db.Notification) {
	b.notifications = append(b.notifications, n)
}

func (b *Batch) Record(a db.Activity) {
	b.activities = append(b.activities, a)
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.notifications) + len(b.activities)
}

// Handler materializes one event. It runs inside the delivery transaction.
type Handler func(ctx context.Context, q *db.Queries, payload []byte) error

type Dispatcher struct {
	db       *db.DB
	logger   *slog.Logger
	handlers map[db.OutboxKind]Handler
}

func NewDispatcher(store *db.DB, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		db:     store,
		logger: logger,
		handlers: map[db.OutboxKind]Handler{
			db.OutboxNotification: insertNotification,
			db.OutboxActivity:     insertActivity,
		},
	}
}

// Handle replaces the handler for kind.
func (d *Dispatcher) Handle(kind db.OutboxKind, h Handler) {
	d.handlers[kind] = h
}

func insertNotification(ctx context.Context, q *db.Queries, payload []byte) error {
	var n db.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	return q.InsertNotification(ctx, &n)
}

func insertActivity(ctx context.Context, q *db.Queries, payload []byte) error {
	var a db.Activity
	if err := json.Unmarshal(payload, &a); err != nil {
		return fmt.Errorf("decode activity: %w", err)
	}
	return q.InsertActivity(ctx, &a)
}

// Append writes the batch to the outbox using q, normally the workflow's
// transaction. IDs and timestamps are fixed here so a replay produces the
// same rows.
func (d *Dispatcher) Append(ctx context.Context, q *db.Queries, b *Batch) ([]db.OutboxEvent, error) {
	if b.Len() == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	var out []db.OutboxEvent

	for _, n := range b.notifications {
		if n.ID == "" {
			n.ID = db.NewID()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		e, err := appendJSON(ctx, q, db.OutboxNotification, n)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	for _, a := range b.activities {
		if a.ID == "" {
			a.ID = db.NewID()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		e, err := appendJSON(ctx, q, db.OutboxActivity, a)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func appendJSON(ctx context.Context, q *db.Queries, kind db.OutboxKind, v any) (*db.OutboxEvent, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return q.AppendOutbox(ctx, kind, payload)
}

// Deliver materializes one event. The outbox claim and the handler's write
// share a transaction, so an event is applied at most once no matter how
// many deliverers race on it; losing the race is not an error.
func (d *Dispatcher) Deliver(ctx context.Context, e db.OutboxEvent) error {
	h, ok := d.handlers[e.Kind]
	if !ok {
		return fmt.Errorf("no handler for outbox kind %q", e.Kind)
	}

	err := d.db.Tx(ctx, func(q *db.Queries) error {
		if err := q.ClaimOutbox(ctx, e.ID); err != nil {
			return err
		}
		return h(ctx, q, e.Payload)
	})
	if errors.Is(err, db.ErrConflict) {
		return nil
	}
	if err != nil {
		if rerr := d.db.RecordOutboxFailure(ctx, e.ID, err.Error()); rerr != nil {
			d.logger.Error("error recording outbox failure", "event", e.ID, "err", rerr)
		}
		return fmt.Errorf("deliver %s %s: %w", e.Kind, e.ID, err)
	}
	return nil
}

// Flush delivers freshly committed events. Failures are logged and left
// for the relay; they never reach the caller.
func (d *Dispatcher) Flush(ctx context.Context, events []db.OutboxEvent) {
	// Delivery must not be cut short because the request that caused it
	// finished.
	ctx = context.WithoutCancel(ctx)
	for _, e := range events {
		if err := d.Deliver(ctx, e); err != nil {
			d.logger.Warn("side effect left pending", "kind", e.Kind, "event", e.ID, "err", err)
		}
	}
}

// Drain delivers up to limit pending events, oldest first, and reports how
// many were delivered. It keeps going past individual failures.
func (d *Dispatcher) Drain(ctx context.Context, limit int) (int, error) {
	pending, err := d.db.ListPendingOutbox(ctx, limit)
	if err != nil {
		return 0, err
	}
	delivered := 0
	var errs []error
	for _, e := range pending {
		if err := d.Deliver(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}
