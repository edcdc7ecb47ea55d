package service

import (
	"context"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/schema"
)

type CustomBoardInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	MemberIDs   []string `json:"memberIds,omitempty"`
}

type CustomBoardUpdate struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Color       *string   `json:"color,omitempty"`
	MemberIDs   *[]string `json:"memberIds,omitempty"`
}

// CreateCustomBoard makes the caller the owner of a new board.
func (s *Service) CreateCustomBoard(ctx context.Context, in CustomBoardInput) (*db.CustomBoard, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.CustomBoardInput, in); err != nil {
		return nil, err
	}
	b := &db.CustomBoard{
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		OwnerID:     sess.UserID,
		MemberIDs:   dedupe(in.MemberIDs),
	}
	if err := s.db.CreateCustomBoard(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) ListCustomBoards(ctx context.Context) ([]db.CustomBoard, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.db.ListCustomBoards(ctx, sess.UserID)
}

func (s *Service) GetCustomBoard(ctx context.Context, id string) (*db.CustomBoard, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.db.GetCustomBoard(ctx, id)
	if err != nil {
		return nil, notFound(err, "Board")
	}
	if !sess.IsAdmin() && !b.HasAccess(sess.UserID) {
		return nil, apperr.NotFound("Board")
	}
	return b, nil
}

// managedBoard loads a board the caller owns, or any board for an admin.
func managedBoard(ctx context.Context, q *db.Queries, sess *auth.Session, id string) (*db.CustomBoard, error) {
	b, err := q.GetCustomBoard(ctx, id)
	if err != nil {
		return nil, notFound(err, "Board")
	}
	if sess.IsAdmin() || b.OwnerID == sess.UserID {
		return b, nil
	}
	if b.HasAccess(sess.UserID) {
		return nil, apperr.Forbidden("Only the board owner can change it")
	}
	return nil, apperr.NotFound("Board")
}

func (s *Service) UpdateCustomBoard(ctx context.Context, id string, u CustomBoardUpdate) (*db.CustomBoard, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	var out *db.CustomBoard
	err = s.db.Tx(ctx, func(q *db.Queries) error {
		b, err := managedBoard(ctx, q, sess, id)
		if err != nil {
			return err
		}
		in := CustomBoardInput{Name: b.Name, Description: b.Description, Color: b.Color, MemberIDs: b.MemberIDs}
		if u.Name != nil {
			in.Name = *u.Name
		}
		if u.Description != nil {
			in.Description = *u.Description
		}
		if u.Color != nil {
			in.Color = *u.Color
		}
		if u.MemberIDs != nil {
			in.MemberIDs = dedupe(*u.MemberIDs)
		}
		if err := s.validate(schema.CustomBoardInput, in); err != nil {
			return err
		}
		b.Name, b.Description, b.Color, b.MemberIDs = in.Name, in.Description, in.Color, in.MemberIDs
		if err := q.UpdateCustomBoard(ctx, b); err != nil {
			return notFound(err, "Board")
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCustomBoard removes the board; its tasks stay.
func (s *Service) DeleteCustomBoard(ctx context.Context, id string) error {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return err
	}
	return s.db.Tx(ctx, func(q *db.Queries) error {
		if _, err := managedBoard(ctx, q, sess, id); err != nil {
			return err
		}
		return notFound(q.DeleteCustomBoard(ctx, id), "Board")
	})
}

// AddTaskToCustomBoard files a task under a board the caller manages.
func (s *Service) AddTaskToCustomBoard(ctx context.Context, boardID, taskID string) (*db.Task, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.mutateTask(ctx, taskID, func(q *db.Queries, _ *events.Batch, t *db.Task) error {
		if _, err := managedBoard(ctx, q, sess, boardID); err != nil {
			return err
		}
		if !canView(sess, t) {
			return apperr.NotFound("Task")
		}
		id := boardID
		t.CustomBoardID = &id
		return nil
	})
}

func (s *Service) CustomBoardTasks(ctx context.Context, boardID string) ([]db.Task, error) {
	if _, err := s.GetCustomBoard(ctx, boardID); err != nil {
		return nil, err
	}
	return s.ListTasks(ctx, TaskQuery{CustomBoardID: boardID})
}
