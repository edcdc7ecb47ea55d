package service

import (
	"context"
	"fmt"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/schema"
)

const dateLayout = "2006-01-02"

// TodayBoard returns the daily board for the current UTC date, creating it
// on first access.
func (s *Service) TodayBoard(ctx context.Context) (*db.DailyBoard, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.db.GetOrCreateDailyBoard(ctx, s.Now().UTC().Format(dateLayout), sess.UserID)
}

func (s *Service) BoardByDate(ctx context.Context, date string) (*db.DailyBoard, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	b, err := s.db.GetDailyBoardByDate(ctx, date)
	if err != nil {
		return nil, notFound(err, "Board")
	}
	return b, nil
}

func (s *Service) ListBoards(ctx context.Context, limit int) ([]db.DailyBoard, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	return s.db.ListDailyBoards(ctx, limit)
}

func (s *Service) BoardTasks(ctx context.Context, boardID string) ([]db.Task, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	if _, err := s.db.GetDailyBoard(ctx, boardID); err != nil {
		return nil, notFound(err, "Board")
	}
	return s.ListTasks(ctx, TaskQuery{DailyBoardID: boardID})
}

// AddBoardTask creates a task on a daily board. Visibility defaults to
// general.
func (s *Service) AddBoardTask(ctx context.Context, boardID string, in TaskInput) (*db.Task, error) {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	in.DailyBoardID = boardID
	if in.Visibility == "" {
		in.Visibility = db.VisibilityGeneral
	}
	if err := s.validate(schema.TaskInput, in); err != nil {
		return nil, err
	}

	var task *db.Task
	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		board, err := q.GetDailyBoard(ctx, boardID)
		if err != nil {
			return notFound(err, "Board")
		}
		task, err = s.insertTask(ctx, q, b, sess, in)
		if err != nil {
			return err
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   task.ProjectID,
			Action:      db.ActionBoardTaskAdded,
			Description: fmt.Sprintf("added %q to the %s board", task.Title, board.Date),
			Metadata:    db.ActivityMeta{TaskID: task.ID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ToggleBoardTaskDone flips a task between done and todo. Any status other
// than done counts as not done. Only the move into done is recorded.
func (s *Service) ToggleBoardTaskDone(ctx context.Context, taskID string) (*db.Task, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.mutateTask(ctx, taskID, func(_ *db.Queries, b *events.Batch, t *db.Task) error {
		if t.DailyBoardID == nil {
			return apperr.NotFound("Board task")
		}
		if !sess.IsAdmin() && !t.IsAssignee(sess.UserID) {
			return apperr.Forbidden("You can only update tasks assigned to you")
		}
		if t.Status == db.StatusDone {
			t.Status = db.StatusTodo
			return nil
		}
		t.Status = db.StatusDone
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   t.ProjectID,
			Action:      db.ActionTaskCompleted,
			Description: fmt.Sprintf("completed task %q", t.Title),
			Metadata:    db.ActivityMeta{TaskID: t.ID},
		})
		return nil
	})
}
