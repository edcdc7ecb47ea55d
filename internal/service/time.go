package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/schema"
)

const msgTimerRunning = "A timer is already running for this task"

type ManualTimeInput struct {
	TaskID          string `json:"taskId"`
	ProjectID       string `json:"projectId"`
	DurationSeconds int64  `json:"durationSeconds"`
	Date            string `json:"date"`
	Note            string `json:"note,omitempty"`
}

// StartTimeEntry opens a timer for the caller on a task. A second open
// timer for the same task is refused by the store's unique index.
func (s *Service) StartTimeEntry(ctx context.Context, taskID, projectID string) (*db.TimeLog, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.db.GetTask(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "Task")
	}
	if !canView(sess, t) {
		return nil, apperr.NotFound("Task")
	}
	projectID, err = logProject(t, projectID)
	if err != nil {
		return nil, err
	}

	l := &db.TimeLog{
		UserID:    sess.UserID,
		TaskID:    taskID,
		ProjectID: projectID,
		StartTime: s.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.db.InsertTimeLog(ctx, l); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperr.Conflict(msgTimerRunning)
		}
		return nil, err
	}
	return l, nil
}

// StopTimeEntry closes the caller's open timer. The duration is whole
// seconds, rounded down, and is added to the task's running total in the
// same transaction.
func (s *Service) StopTimeEntry(ctx context.Context, logID string) (*db.TimeLog, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}

	var out *db.TimeLog
	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		l, err := q.GetTimeLog(ctx, logID)
		if err != nil {
			return notFound(err, "Time entry")
		}
		if l.UserID != sess.UserID {
			return apperr.NotFound("Time entry")
		}
		if l.EndTime != nil {
			return apperr.Conflict("Timer is already stopped")
		}

		end := s.Now().UTC()
		duration := int64(end.Sub(l.StartTime) / time.Second)
		if duration < 0 {
			duration = 0
		}
		if err := q.CloseTimeLog(ctx, l.ID, end, duration); err != nil {
			if errors.Is(err, db.ErrConflict) {
				return apperr.Conflict("Timer is already stopped")
			}
			return err
		}
		if err := s.recordTime(ctx, q, b, sess, l.TaskID, duration); err != nil {
			return err
		}
		l.EndTime = &end
		l.Duration = duration
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LogManualTime stores an already closed entry starting at midnight UTC of
// the given date.
func (s *Service) LogManualTime(ctx context.Context, in ManualTimeInput) (*db.TimeLog, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.ManualTimeInput, in); err != nil {
		return nil, err
	}
	day, err := time.Parse(dateLayout, in.Date)
	if err != nil {
		return nil, apperr.Invalid("date", "must be YYYY-MM-DD")
	}

	var out *db.TimeLog
	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		t, err := q.GetTask(ctx, in.TaskID)
		if err != nil {
			return notFound(err, "Task")
		}
		if !canView(sess, t) {
			return apperr.NotFound("Task")
		}
		projectID, err := logProject(t, in.ProjectID)
		if err != nil {
			return err
		}
		end := day.Add(time.Duration(in.DurationSeconds) * time.Second)
		l := &db.TimeLog{
			UserID:    sess.UserID,
			TaskID:    in.TaskID,
			ProjectID: projectID,
			StartTime: day,
			EndTime:   &end,
			Duration:  in.DurationSeconds,
			Manual:    true,
			Note:      in.Note,
		}
		if err := q.InsertTimeLog(ctx, l); err != nil {
			return err
		}
		if err := s.recordTime(ctx, q, b, sess, in.TaskID, in.DurationSeconds); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// logProject is the project a time entry on t is filed under. An empty
// projectID means the task's own project; any other project is rejected.
func logProject(t *db.Task, projectID string) (string, error) {
	if projectID != "" && projectID != t.ProjectID {
		return "", apperr.Invalid("projectId", "must be the task's project")
	}
	return t.ProjectID, nil
}

// recordTime adds seconds to the task total and stages the time_logged
// activity.
func (s *Service) recordTime(ctx context.Context, q *db.Queries, b *events.Batch, sess *auth.Session, taskID string, seconds int64) error {
	if err := q.AddTimeSpent(ctx, taskID, seconds); err != nil {
		return notFound(err, "Task")
	}
	t, err := q.GetTask(ctx, taskID)
	if err != nil {
		return notFound(err, "Task")
	}
	b.Record(db.Activity{
		ActorID:     sess.UserID,
		ProjectID:   t.ProjectID,
		Action:      db.ActionTimeLogged,
		Description: fmt.Sprintf("logged %s on %q", minutes(seconds), t.Title),
		Metadata:    db.ActivityMeta{TaskID: t.ID, NewValue: fmt.Sprint(seconds)},
	})
	return nil
}

func minutes(seconds int64) string {
	m := int(math.Round(float64(seconds) / 60))
	return plural(m, "minute", "minutes")
}

// ActiveTimer returns the caller's running timer, or nil.
func (s *Service) ActiveTimer(ctx context.Context) (*db.TimeLog, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	l, err := s.db.GetOpenTimeLog(ctx, sess.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	return l, err
}

func (s *Service) TaskTimeLogs(ctx context.Context, taskID string) ([]db.TimeLog, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.db.ListTimeLogs(ctx, db.TimeLogFilter{TaskID: taskID})
}

// MyTimeLogs lists the caller's entries started in [from, to). Zero bounds
// are open.
func (s *Service) MyTimeLogs(ctx context.Context, from, to time.Time) ([]db.TimeLog, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.db.ListTimeLogs(ctx, db.TimeLogFilter{UserID: sess.UserID, From: from, To: to})
}

// DeleteTimeLog removes an entry and takes a closed entry's duration back
// off the task total. Owners and admins may.
func (s *Service) DeleteTimeLog(ctx context.Context, id string) error {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return err
	}
	return s.db.Tx(ctx, func(q *db.Queries) error {
		l, err := q.GetTimeLog(ctx, id)
		if err != nil {
			return notFound(err, "Time entry")
		}
		if l.UserID != sess.UserID && !sess.IsAdmin() {
			return apperr.NotFound("Time entry")
		}
		if err := q.DeleteTimeLog(ctx, id); err != nil {
			return notFound(err, "Time entry")
		}
		if l.EndTime != nil && l.Duration > 0 {
			if err := q.AddTimeSpent(ctx, l.TaskID, -l.Duration); err != nil && !errors.Is(err, db.ErrNotFound) {
				return err
			}
		}
		return nil
	})
}

// DailyTotals sums logged seconds per day in [from, to). Members only see
// their own totals; an admin may pass any user, or none for everyone.
func (s *Service) DailyTotals(ctx context.Context, userID string, from, to time.Time) ([]db.DailyTotal, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		userID = sess.UserID
	}
	if !to.After(from) {
		return nil, apperr.Invalid("to", "must be after from")
	}
	return s.db.DailyTotals(ctx, userID, from, to)
}
