package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const outboxColumns = `id, kind, payload, status, attempts, last_error, created_at, delivered_at`

func scanOutbox(row scanner) (*OutboxEvent, error) {
	var e OutboxEvent
	var payload string
	var created int64
	var delivered sql.NullInt64
	if err := row.Scan(&e.ID, &e.Kind, &payload, &e.Status, &e.Attempts, &e.LastError, &created, &delivered); err != nil {
		return nil, err
	}
	e.Payload = []byte(payload)
	e.CreatedAt = fromMillis(created)
	e.DeliveredAt = fromNullMillis(delivered)
	return &e, nil
}

// AppendOutbox records a pending side effect.
func (q *Queries) AppendOutbox(ctx context.Context, kind OutboxKind, payload []byte) (*OutboxEvent, error) {
	e := &OutboxEvent{
		ID:        NewID(),
		Kind:      kind,
		Payload:   payload,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	_, err := q.q.ExecContext(ctx,
		"INSERT INTO outbox (id, kind, payload, status, created_at) VALUES (?, ?, ?, 'pending', ?)",
		e.ID, e.Kind, string(e.Payload), millis(e.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert outbox: %w", err)
	}
	return e, nil
}

func (q *Queries) GetOutbox(ctx context.Context, id string) (*OutboxEvent, error) {
	e, err := scanOutbox(q.q.QueryRowContext(ctx, "SELECT "+outboxColumns+" FROM outbox WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	return e, nil
}

// ClaimOutbox marks a pending event delivered. Run it in the same
// transaction as the write that materializes the event: whoever claims
// first wins and every later claim gets ErrConflict.
func (q *Queries) ClaimOutbox(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE outbox SET status = 'delivered', attempts = attempts + 1, delivered_at = ? WHERE id = ? AND status = 'pending'",
		millis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("claim outbox: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetOutbox(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// RecordOutboxFailure bumps the attempt counter of a pending event.
func (q *Queries) RecordOutboxFailure(ctx context.Context, id, msg string) error {
	_, err := q.q.ExecContext(ctx,
		"UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ? AND status = 'pending'",
		msg, id,
	)
	if err != nil {
		return fmt.Errorf("record outbox failure: %w", err)
	}
	return nil
}

// ListPendingOutbox returns undelivered events, oldest first.
func (q *Queries) ListPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+outboxColumns+" FROM outbox WHERE status = 'pending' ORDER BY created_at, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// PurgeDeliveredOutbox drops delivered events older than cutoff.
func (q *Queries) PurgeDeliveredOutbox(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.q.ExecContext(ctx,
		"DELETE FROM outbox WHERE status = 'delivered' AND delivered_at < ?", millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return res.RowsAffected()
}
