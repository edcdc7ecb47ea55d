package service

import (
	"context"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/schema"
)

// NoteInput serves both create and update; nil fields keep their current
// or default value.
type NoteInput struct {
	Content *string  `json:"content,omitempty"`
	Color   *string  `json:"color,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Width   *float64 `json:"width,omitempty"`
	Height  *float64 `json:"height,omitempty"`
	ZIndex  *int     `json:"zIndex,omitempty"`
	Pinned  *bool    `json:"pinned,omitempty"`
}

func (in NoteInput) apply(n *db.StickyNote) {
	if in.Content != nil {
		n.Content = *in.Content
	}
	if in.Color != nil {
		n.Color = *in.Color
	}
	if in.X != nil {
		n.X = *in.X
	}
	if in.Y != nil {
		n.Y = *in.Y
	}
	if in.Width != nil {
		n.Width = *in.Width
	}
	if in.Height != nil {
		n.Height = *in.Height
	}
	if in.ZIndex != nil {
		n.ZIndex = *in.ZIndex
	}
	if in.Pinned != nil {
		n.Pinned = *in.Pinned
	}
}

func (s *Service) CreateNote(ctx context.Context, in NoteInput) (*db.StickyNote, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.NoteInput, in); err != nil {
		return nil, err
	}
	n := &db.StickyNote{OwnerID: sess.UserID}
	in.apply(n)
	if err := s.db.CreateNote(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) ListNotes(ctx context.Context) ([]db.StickyNote, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.db.ListNotes(ctx, sess.UserID)
}

// ownNote loads a note the caller owns. Other users' notes read as not
// found.
func ownNote(ctx context.Context, q *db.Queries, sess *auth.Session, id string) (*db.StickyNote, error) {
	n, err := q.GetNote(ctx, id)
	if err != nil {
		return nil, notFound(err, "Note")
	}
	if n.OwnerID != sess.UserID {
		return nil, apperr.NotFound("Note")
	}
	return n, nil
}

func (s *Service) UpdateNote(ctx context.Context, id string, in NoteInput) (*db.StickyNote, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.NoteInput, in); err != nil {
		return nil, err
	}
	var out *db.StickyNote
	err = s.db.Tx(ctx, func(q *db.Queries) error {
		n, err := ownNote(ctx, q, sess, id)
		if err != nil {
			return err
		}
		in.apply(n)
		if err := q.UpdateNote(ctx, n); err != nil {
			return notFound(err, "Note")
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return err
	}
	return s.db.Tx(ctx, func(q *db.Queries) error {
		if _, err := ownNote(ctx, q, sess, id); err != nil {
			return err
		}
		return notFound(q.DeleteNote(ctx, id), "Note")
	})
}
