package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const taskColumns = `id, title, description, status, priority, project_id, assignee_ids, assigner_id,
	visibility, deadline, start_date, subtasks, total_time_spent, daily_board_id, custom_board_id,
	version, created_at, updated_at`

func scanTask(row scanner) (*Task, error) {
	var t Task
	var assignees, subtasks string
	var deadline, start sql.NullInt64
	var daily, custom sql.NullString
	var created, updated int64
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.ProjectID,
		&assignees, &t.AssignerID, &t.Visibility, &deadline, &start, &subtasks, &t.TotalTimeSpent,
		&daily, &custom, &t.Version, &created, &updated); err != nil {
		return nil, err
	}
	if err := decodeJSON(assignees, &t.AssigneeIDs); err != nil {
		return nil, err
	}
	if err := decodeJSON(subtasks, &t.Subtasks); err != nil {
		return nil, err
	}
	t.AssigneeIDs = nonNil(t.AssigneeIDs)
	t.Subtasks = nonNil(t.Subtasks)
	t.Deadline = fromNullMillis(deadline)
	t.StartDate = fromNullMillis(start)
	t.DailyBoardID = fromNullString(daily)
	t.CustomBoardID = fromNullString(custom)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return &t, nil
}

func (q *Queries) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Visibility == "" {
		t.Visibility = VisibilityGeneral
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	t.Version = 1
	t.AssigneeIDs = nonNil(t.AssigneeIDs)
	t.Subtasks = nonNil(t.Subtasks)

	assignees, err := encodeJSON(t.AssigneeIDs)
	if err != nil {
		return err
	}
	subtasks, err := encodeJSON(t.Subtasks)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.ProjectID, assignees, t.AssignerID,
		t.Visibility, nullMillis(t.Deadline), nullMillis(t.StartDate), subtasks, t.TotalTimeSpent,
		nullString(t.DailyBoardID), nullString(t.CustomBoardID), t.Version,
		millis(t.CreatedAt), millis(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (q *Queries) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(q.q.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return t, nil
}

type TaskFilter struct {
	ProjectID     string
	AssigneeID    string
	Status        TaskStatus
	DailyBoardID  string
	CustomBoardID string
	// ViewerID hides private tasks the viewer is neither assigner nor
	// assignee of. Empty means no visibility filtering.
	ViewerID string
	Limit    int
}

func (q *Queries) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	var where []string
	var args []any
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.AssigneeID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(tasks.assignee_ids) WHERE value = ?)")
		args = append(args, f.AssigneeID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.DailyBoardID != "" {
		where = append(where, "daily_board_id = ?")
		args = append(args, f.DailyBoardID)
	}
	if f.CustomBoardID != "" {
		where = append(where, "custom_board_id = ?")
		args = append(args, f.CustomBoardID)
	}
	if f.ViewerID != "" {
		where = append(where, `(visibility = 'general' OR assigner_id = ?
			OR EXISTS (SELECT 1 FROM json_each(tasks.assignee_ids) WHERE value = ?))`)
		args = append(args, f.ViewerID, f.ViewerID)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
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
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTask writes the editable fields of t if the stored version still
// equals t.Version, then bumps the version. A stale version yields
// ErrConflict. total_time_spent is never written here; see AddTimeSpent.
func (q *Queries) UpdateTask(ctx context.Context, t *Task) error {
	t.AssigneeIDs = nonNil(t.AssigneeIDs)
	t.Subtasks = nonNil(t.Subtasks)
	assignees, err := encodeJSON(t.AssigneeIDs)
	if err != nil {
		return err
	}
	subtasks, err := encodeJSON(t.Subtasks)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := q.q.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, project_id = ?,
			assignee_ids = ?, visibility = ?, deadline = ?, start_date = ?, subtasks = ?,
			daily_board_id = ?, custom_board_id = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		t.Title, t.Description, t.Status, t.Priority, t.ProjectID, assignees, t.Visibility,
		nullMillis(t.Deadline), nullMillis(t.StartDate), subtasks,
		nullString(t.DailyBoardID), nullString(t.CustomBoardID), millis(now),
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetTask(ctx, t.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	t.Version++
	t.UpdatedAt = now
	return nil
}

// AddTimeSpent adjusts the task's running total by seconds, which may be
// negative. The total never drops below zero.
func (q *Queries) AddTimeSpent(ctx context.Context, taskID string, seconds int64) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE tasks SET total_time_spent = MAX(0, total_time_spent + ?), updated_at = ? WHERE id = ?",
		seconds, millis(time.Now()), taskID,
	)
	if err != nil {
		return fmt.Errorf("update task time: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteTask(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
