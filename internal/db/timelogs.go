package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const timeLogColumns = `id, user_id, task_id, project_id, start_time, end_time, duration, manual, note, created_at`

func scanTimeLog(row scanner) (*TimeLog, error) {
	var l TimeLog
	var start, created int64
	var end sql.NullInt64
	var manual int
	if err := row.Scan(&l.ID, &l.UserID, &l.TaskID, &l.ProjectID, &start, &end, &l.Duration,
		&manual, &l.Note, &created); err != nil {
		return nil, err
	}
	l.StartTime = fromMillis(start)
	l.EndTime = fromNullMillis(end)
	l.Manual = manual != 0
	l.CreatedAt = fromMillis(created)
	return &l, nil
}

// InsertTimeLog stores l. An open log (no EndTime) for a (user, task) pair
// that already has one fails with ErrDuplicate.
func (q *Queries) InsertTimeLog(ctx context.Context, l *TimeLog) error {
	l.ID = NewID()
	l.CreatedAt = time.Now().UTC()
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO time_logs (`+timeLogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.TaskID, l.ProjectID, millis(l.StartTime), nullMillis(l.EndTime),
		l.Duration, boolInt(l.Manual), l.Note, millis(l.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert time log: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert time log: %w", err)
	}
	return nil
}

func (q *Queries) GetTimeLog(ctx context.Context, id string) (*TimeLog, error) {
	l, err := scanTimeLog(q.q.QueryRowContext(ctx, "SELECT "+timeLogColumns+" FROM time_logs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query time log: %w", err)
	}
	return l, nil
}

// GetOpenTimeLog returns the user's most recently started running timer.
func (q *Queries) GetOpenTimeLog(ctx context.Context, userID string) (*TimeLog, error) {
	l, err := scanTimeLog(q.q.QueryRowContext(ctx,
		"SELECT "+timeLogColumns+" FROM time_logs WHERE user_id = ? AND end_time IS NULL ORDER BY start_time DESC LIMIT 1",
		userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query open time log: %w", err)
	}
	return l, nil
}

// CloseTimeLog stamps end and duration on a still-open log. A log that was
// already closed yields ErrConflict.
func (q *Queries) CloseTimeLog(ctx context.Context, id string, end time.Time, duration int64) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE time_logs SET end_time = ?, duration = ? WHERE id = ? AND end_time IS NULL",
		millis(end), duration, id,
	)
	if err != nil {
		return fmt.Errorf("close time log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetTimeLog(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

type TimeLogFilter struct {
	UserID string
	TaskID string
	From   time.Time
	To     time.Time
	Limit  int
}

func (q *Queries) ListTimeLogs(ctx context.Context, f TimeLogFilter) ([]TimeLog, error) {
	var where []string
	var args []any
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, f.TaskID)
	}
	if !f.From.IsZero() {
		where = append(where, "start_time >= ?")
		args = append(args, millis(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "start_time < ?")
		args = append(args, millis(f.To))
	}

	query := "SELECT " + timeLogColumns + " FROM time_logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query time logs: %w", err)
	}
	defer rows.Close()

	var logs []TimeLog
	for rows.Next() {
		l, err := scanTimeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func (q *Queries) DeleteTimeLog(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM time_logs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete time log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DailyTotals sums closed log durations per user and UTC calendar day for
// logs started in [from, to). An empty userID covers every user.
func (q *Queries) DailyTotals(ctx context.Context, userID string, from, to time.Time) ([]DailyTotal, error) {
	query := `SELECT user_id, date(start_time / 1000, 'unixepoch') AS day, SUM(duration)
		FROM time_logs
		WHERE end_time IS NOT NULL AND start_time >= ? AND start_time < ?`
	args := []any{millis(from), millis(to)}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " GROUP BY user_id, day ORDER BY day, user_id"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily totals: %w", err)
	}
	defer rows.Close()

	var totals []DailyTotal
	for rows.Next() {
		var d DailyTotal
		if err := rows.Scan(&d.UserID, &d.Date, &d.Seconds); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		totals = append(totals, d)
	}
	return totals, rows.Err()
}
