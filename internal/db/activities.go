package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const activityColumns = `id, actor_id, project_id, action, description, metadata, created_at`

func scanActivity(row scanner) (*Activity, error) {
	var a Activity
	var meta string
	var created int64
	if err := row.Scan(&a.ID, &a.ActorID, &a.ProjectID, &a.Action, &a.Description, &meta, &created); err != nil {
		return nil, err
	}
	if err := decodeJSON(meta, &a.Metadata); err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(created)
	return &a, nil
}

// InsertActivity appends a to the feed. The ID and CreatedAt are assigned
// when empty so outbox replays keep the original values.
func (q *Queries) InsertActivity(ctx context.Context, a *Activity) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	meta, err := encodeJSON(a.Metadata)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO activities (`+activityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ActorID, a.ProjectID, a.Action, a.Description, meta, millis(a.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert activity: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

type ActivityFilter struct {
	ProjectID string
	ActorID   string
	Action    ActivityAction
	// VisibleTo limits the feed to entries the user acted in or that belong
	// to projects the user is a member of.
	VisibleTo string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// ListActivities returns entries newest first.
func (q *Queries) ListActivities(ctx context.Context, f ActivityFilter) ([]Activity, error) {
	var where []string
	var args []any
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.VisibleTo != "" {
		where = append(where, `(actor_id = ? OR project_id IN (
			SELECT p.id FROM projects p
			WHERE p.created_by = ? OR EXISTS (SELECT 1 FROM json_each(p.member_ids) WHERE value = ?)))`)
		args = append(args, f.VisibleTo, f.VisibleTo, f.VisibleTo)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, millis(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, millis(f.Until))
	}

	query := "SELECT " + activityColumns + " FROM activities"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DeleteActivities removes entries created before cutoff, or every entry
// when cutoff is zero.
func (q *Queries) DeleteActivities(ctx context.Context, cutoff time.Time) (int64, error) {
	query := "DELETE FROM activities"
	var args []any
	if !cutoff.IsZero() {
		query += " WHERE created_at < ?"
		args = append(args, millis(cutoff))
	}
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete activities: %w", err)
	}
	return res.RowsAffected()
}
