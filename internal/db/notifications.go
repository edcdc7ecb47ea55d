package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const notificationColumns = `id, recipient_id, type, title, message, metadata, read, created_at`

func scanNotification(row scanner) (*Notification, error) {
	var n Notification
	var meta string
	var read int
	var created int64
	if err := row.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &meta, &read, &created); err != nil {
		return nil, err
	}
	if err := decodeJSON(meta, &n.Metadata); err != nil {
		return nil, err
	}
	n.Read = read != 0
	n.CreatedAt = fromMillis(created)
	return &n, nil
}

// InsertNotification stores n as given. The ID and CreatedAt are assigned
// when empty so outbox replays keep the original values.
func (q *Queries) InsertNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = NewID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	meta, err := encodeJSON(n.Metadata)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, n.Type, n.Title, n.Message, meta, boolInt(n.Read), millis(n.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert notification: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (q *Queries) GetNotification(ctx context.Context, id string) (*Notification, error) {
	n, err := scanNotification(q.q.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns the recipient's notifications, newest first.
func (q *Queries) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]Notification, error) {
	query := "SELECT " + notificationColumns + " FROM notifications WHERE recipient_id = ?"
	args := []any{recipientID}
	if unreadOnly {
		query += " AND read = 0"
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (q *Queries) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND read = 0", recipientID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead only matches the recipient's own notification.
func (q *Queries) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ? AND recipient_id = ?", id, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := q.q.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE recipient_id = ? AND read = 0", recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteNotification(ctx context.Context, id, recipientID string) error {
	res, err := q.q.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ? AND recipient_id = ?", id, recipientID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
