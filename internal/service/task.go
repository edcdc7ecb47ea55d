package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/schema"
)

const msgTaskConflict = "Task was modified by someone else"

type SubtaskInput struct {
	Title string `json:"title"`
}

type TaskInput struct {
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	ProjectID     string         `json:"projectId"`
	AssigneeIDs   []string       `json:"assigneeIds,omitempty"`
	Priority      db.Priority    `json:"priority,omitempty"`
	Status        db.TaskStatus  `json:"status,omitempty"`
	Visibility    db.Visibility  `json:"visibility,omitempty"`
	Deadline      string         `json:"deadline,omitempty"`
	StartDate     string         `json:"startDate,omitempty"`
	DailyBoardID  string         `json:"dailyBoardId,omitempty"`
	CustomBoardID string         `json:"customBoardId,omitempty"`
	Subtasks      []SubtaskInput `json:"subtasks,omitempty"`
}

type SubtaskEdit struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	Done  bool   `json:"done,omitempty"`
}

// TaskUpdate is a partial update. Nil fields are left alone; an empty
// Deadline, StartDate or CustomBoardID clears the value.
type TaskUpdate struct {
	Title         *string         `json:"title,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Status        *db.TaskStatus  `json:"status,omitempty"`
	Priority      *db.Priority    `json:"priority,omitempty"`
	ProjectID     *string         `json:"projectId,omitempty"`
	AssigneeIDs   *[]string       `json:"assigneeIds,omitempty"`
	Visibility    *db.Visibility  `json:"visibility,omitempty"`
	Deadline      *string         `json:"deadline,omitempty"`
	StartDate     *string         `json:"startDate,omitempty"`
	CustomBoardID *string         `json:"customBoardId,omitempty"`
	Subtasks      *[]SubtaskEdit  `json:"subtasks,omitempty"`
	// Version, when set, must match the stored version.
	Version *int64 `json:"version,omitempty"`
}

// Fields names the fields the update sets.
func (u *TaskUpdate) Fields() []string {
	var f []string
	set := func(ok bool, name string) {
		if ok {
			f = append(f, name)
		}
	}
	set(u.Title != nil, FieldTitle)
	set(u.Description != nil, FieldDescription)
	set(u.Status != nil, FieldStatus)
	set(u.Priority != nil, FieldPriority)
	set(u.ProjectID != nil, FieldProjectID)
	set(u.AssigneeIDs != nil, FieldAssigneeIDs)
	set(u.Visibility != nil, FieldVisibility)
	set(u.Deadline != nil, FieldDeadline)
	set(u.StartDate != nil, FieldStartDate)
	set(u.CustomBoardID != nil, FieldCustomBoardID)
	set(u.Subtasks != nil, FieldSubtasks)
	return f
}

type TaskQuery struct {
	ProjectID     string
	AssigneeID    string
	Status        db.TaskStatus
	DailyBoardID  string
	CustomBoardID string
	Limit         int
}

func canView(sess *auth.Session, t *db.Task) bool {
	return sess.IsAdmin() || t.Visibility != db.VisibilityPrivate ||
		t.AssignerID == sess.UserID || t.IsAssignee(sess.UserID)
}

// CreateTask creates a task and notifies its assignees.
func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*db.Task, error) {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.TaskInput, in); err != nil {
		return nil, err
	}

	var task *db.Task
	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		task, err = s.insertTask(ctx, q, b, sess, in)
		if err != nil {
			return err
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   task.ProjectID,
			Action:      db.ActionTaskCreated,
			Description: fmt.Sprintf("created task %q", task.Title),
			Metadata:    db.ActivityMeta{TaskID: task.ID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// insertTask writes a validated task and stages a task_assigned
// notification for every assignee other than the creator.
func (s *Service) insertTask(ctx context.Context, q *db.Queries, b *events.Batch, sess *auth.Session, in TaskInput) (*db.Task, error) {
	if _, err := q.GetProject(ctx, in.ProjectID); err != nil {
		return nil, notFound(err, "Project")
	}
	deadline, err := parseDate(FieldDeadline, in.Deadline)
	if err != nil {
		return nil, err
	}
	start, err := parseDate(FieldStartDate, in.StartDate)
	if err != nil {
		return nil, err
	}

	t := &db.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		ProjectID:   in.ProjectID,
		AssigneeIDs: dedupe(in.AssigneeIDs),
		AssignerID:  sess.UserID,
		Visibility:  in.Visibility,
		Deadline:    deadline,
		StartDate:   start,
	}
	for _, st := range in.Subtasks {
		t.Subtasks = append(t.Subtasks, db.Subtask{ID: db.NewID(), Title: st.Title})
	}
	if in.DailyBoardID != "" {
		if _, err := q.GetDailyBoard(ctx, in.DailyBoardID); err != nil {
			return nil, notFound(err, "Board")
		}
		id := in.DailyBoardID
		t.DailyBoardID = &id
	}
	if in.CustomBoardID != "" {
		if _, err := q.GetCustomBoard(ctx, in.CustomBoardID); err != nil {
			return nil, notFound(err, "Board")
		}
		id := in.CustomBoardID
		t.CustomBoardID = &id
	}
	if err := q.CreateTask(ctx, t); err != nil {
		return nil, err
	}

	for _, id := range t.AssigneeIDs {
		if id == sess.UserID {
			continue
		}
		b.Notify(assignedNotification(sess, t, id))
	}
	return t, nil
}

func assignedNotification(sess *auth.Session, t *db.Task, recipient string) db.Notification {
	return db.Notification{
		RecipientID: recipient,
		Type:        db.NotifyTaskAssigned,
		Title:       "New task assigned",
		Message:     fmt.Sprintf("%s assigned you to %q", actorName(sess), t.Title),
		Metadata:    db.NotificationMeta{TaskID: t.ID, ProjectID: t.ProjectID, UserID: sess.UserID},
	}
}

func (s *Service) GetTask(ctx context.Context, id string) (*db.Task, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.db.GetTask(ctx, id)
	if err != nil {
		return nil, notFound(err, "Task")
	}
	if !canView(sess, t) {
		return nil, apperr.NotFound("Task")
	}
	return t, nil
}

// ListTasks hides private tasks the caller is not part of, unless the
// caller is an admin.
func (s *Service) ListTasks(ctx context.Context, f TaskQuery) ([]db.Task, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	filter := db.TaskFilter{
		ProjectID:     f.ProjectID,
		AssigneeID:    f.AssigneeID,
		Status:        f.Status,
		DailyBoardID:  f.DailyBoardID,
		CustomBoardID: f.CustomBoardID,
		Limit:         f.Limit,
	}
	if !sess.IsAdmin() {
		filter.ViewerID = sess.UserID
	}
	return s.db.ListTasks(ctx, filter)
}

// MyTasks lists the tasks assigned to the caller.
func (s *Service) MyTasks(ctx context.Context, status db.TaskStatus) ([]db.Task, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.ListTasks(ctx, TaskQuery{AssigneeID: sess.UserID, Status: status})
}

// UpdateTask applies a partial update. Admins may change any field; an
// assignee may change the status only. The write is a compare-and-swap on
// the task version.
func (s *Service) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*db.Task, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.TaskUpdate, u); err != nil {
		return nil, err
	}

	var updated *db.Task
	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		prev, err := q.GetTask(ctx, id)
		if err != nil {
			return notFound(err, "Task")
		}
		if err := CheckTaskUpdate(sess, prev, u.Fields()); err != nil {
			return err
		}
		if u.Version != nil && *u.Version != prev.Version {
			return apperr.Conflict(msgTaskConflict)
		}

		next := *prev
		if err := applyTaskUpdate(ctx, q, &next, u); err != nil {
			return err
		}
		if err := saveTask(ctx, q, &next); err != nil {
			return err
		}
		stageTaskEffects(b, sess, prev, &next)
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func saveTask(ctx context.Context, q *db.Queries, t *db.Task) error {
	err := q.UpdateTask(ctx, t)
	if errors.Is(err, db.ErrConflict) {
		return apperr.Conflict(msgTaskConflict)
	}
	return notFound(err, "Task")
}

func applyTaskUpdate(ctx context.Context, q *db.Queries, t *db.Task, u TaskUpdate) error {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.ProjectID != nil && *u.ProjectID != t.ProjectID {
		if _, err := q.GetProject(ctx, *u.ProjectID); err != nil {
			return notFound(err, "Project")
		}
		t.ProjectID = *u.ProjectID
	}
	if u.AssigneeIDs != nil {
		t.AssigneeIDs = dedupe(*u.AssigneeIDs)
	}
	if u.Visibility != nil {
		t.Visibility = *u.Visibility
	}
	if u.Deadline != nil {
		d, err := parseDate(FieldDeadline, *u.Deadline)
		if err != nil {
			return err
		}
		t.Deadline = d
	}
	if u.StartDate != nil {
		d, err := parseDate(FieldStartDate, *u.StartDate)
		if err != nil {
			return err
		}
		t.StartDate = d
	}
	if u.CustomBoardID != nil {
		if *u.CustomBoardID == "" {
			t.CustomBoardID = nil
		} else {
			if _, err := q.GetCustomBoard(ctx, *u.CustomBoardID); err != nil {
				return notFound(err, "Board")
			}
			id := *u.CustomBoardID
			t.CustomBoardID = &id
		}
	}
	if u.Subtasks != nil {
		subtasks := make([]db.Subtask, 0, len(*u.Subtasks))
		for _, st := range *u.Subtasks {
			if st.ID == "" {
				st.ID = db.NewID()
			}
			subtasks = append(subtasks, db.Subtask{ID: st.ID, Title: st.Title, Done: st.Done})
		}
		t.Subtasks = subtasks
	}
	return nil
}

// stageTaskEffects stages the side effects of moving a task from prev to
// next. Each one is conditioned on its field actually changing.
func stageTaskEffects(b *events.Batch, sess *auth.Session, prev, next *db.Task) {
	if next.Status == db.StatusDone && prev.Status != db.StatusDone {
		if next.AssignerID != "" && next.AssignerID != sess.UserID {
			b.Notify(db.Notification{
				RecipientID: next.AssignerID,
				Type:        db.NotifyTaskCompleted,
				Title:       "Task completed",
				Message:     fmt.Sprintf("%s completed %q", actorName(sess), next.Title),
				Metadata:    db.NotificationMeta{TaskID: next.ID, ProjectID: next.ProjectID, UserID: sess.UserID},
			})
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   next.ProjectID,
			Action:      db.ActionTaskCompleted,
			Description: fmt.Sprintf("completed task %q", next.Title),
			Metadata:    db.ActivityMeta{TaskID: next.ID},
		})
	}

	if newIDs := added(prev.AssigneeIDs, next.AssigneeIDs); len(newIDs) > 0 {
		for _, id := range newIDs {
			if id == sess.UserID {
				continue
			}
			b.Notify(assignedNotification(sess, next, id))
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   next.ProjectID,
			Action:      db.ActionTaskAssigned,
			Description: fmt.Sprintf("assigned %s to %q", plural(len(newIDs), "member", "members"), next.Title),
			Metadata:    db.ActivityMeta{TaskID: next.ID, Count: len(newIDs)},
		})
	}

	if next.Status != prev.Status {
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   next.ProjectID,
			Action:      db.ActionStatusChanged,
			Description: fmt.Sprintf("moved %q from %s to %s", next.Title, prev.Status, next.Status),
			Metadata: db.ActivityMeta{
				TaskID:        next.ID,
				PreviousValue: string(prev.Status),
				NewValue:      string(next.Status),
			},
		})
	}

	if detailsChanged(prev, next) {
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   next.ProjectID,
			Action:      db.ActionTaskUpdated,
			Description: fmt.Sprintf("updated task %q", next.Title),
			Metadata:    db.ActivityMeta{TaskID: next.ID},
		})
	}
}

// detailsChanged reports changes other than status and assignees, which
// have their own activity entries.
func detailsChanged(prev, next *db.Task) bool {
	return prev.Title != next.Title ||
		prev.Description != next.Description ||
		prev.Priority != next.Priority ||
		prev.ProjectID != next.ProjectID ||
		prev.Visibility != next.Visibility ||
		formatDate(prev.Deadline) != formatDate(next.Deadline) ||
		formatDate(prev.StartDate) != formatDate(next.StartDate)
}

// DeleteTask removes a task together with its time logs.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	return s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		t, err := q.GetTask(ctx, id)
		if err != nil {
			return notFound(err, "Task")
		}
		if err := q.DeleteTask(ctx, id); err != nil {
			return notFound(err, "Task")
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   t.ProjectID,
			Action:      db.ActionTaskDeleted,
			Description: fmt.Sprintf("deleted task %q", t.Title),
			Metadata:    db.ActivityMeta{TaskID: t.ID},
		})
		return nil
	})
}

// mutateTask loads a task, lets fn change it and saves it with the
// version check.
func (s *Service) mutateTask(ctx context.Context, id string, fn func(q *db.Queries, b *events.Batch, t *db.Task) error) (*db.Task, error) {
	var out *db.Task
	err := s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		t, err := q.GetTask(ctx, id)
		if err != nil {
			return notFound(err, "Task")
		}
		if err := fn(q, b, t); err != nil {
			return err
		}
		if err := saveTask(ctx, q, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) AddSubtask(ctx context.Context, taskID, title string) (*db.Task, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(schema.SubtaskInput, SubtaskInput{Title: title}); err != nil {
		return nil, err
	}
	return s.mutateTask(ctx, taskID, func(_ *db.Queries, _ *events.Batch, t *db.Task) error {
		t.Subtasks = append(append([]db.Subtask(nil), t.Subtasks...), db.Subtask{ID: db.NewID(), Title: title})
		return nil
	})
}

// ToggleSubtask flips a subtask's done flag. Admins and assignees may.
func (s *Service) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*db.Task, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.mutateTask(ctx, taskID, func(_ *db.Queries, _ *events.Batch, t *db.Task) error {
		if !sess.IsAdmin() && !t.IsAssignee(sess.UserID) {
			return apperr.Forbidden("You can only update tasks assigned to you")
		}
		subtasks := append([]db.Subtask(nil), t.Subtasks...)
		for i := range subtasks {
			if subtasks[i].ID == subtaskID {
				subtasks[i].Done = !subtasks[i].Done
				t.Subtasks = subtasks
				return nil
			}
		}
		return apperr.NotFound("Subtask")
	})
}

func (s *Service) RemoveSubtask(ctx context.Context, taskID, subtaskID string) (*db.Task, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.mutateTask(ctx, taskID, func(_ *db.Queries, _ *events.Batch, t *db.Task) error {
		subtasks := make([]db.Subtask, 0, len(t.Subtasks))
		for _, st := range t.Subtasks {
			if st.ID != subtaskID {
				subtasks = append(subtasks, st)
			}
		}
		if len(subtasks) == len(t.Subtasks) {
			return apperr.NotFound("Subtask")
		}
		t.Subtasks = subtasks
		return nil
	})
}
