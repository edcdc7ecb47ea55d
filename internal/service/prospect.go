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

type ProspectInput struct {
	Name    string   `json:"name"`
	Company string   `json:"company,omitempty"`
	Email   string   `json:"email,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Website string   `json:"website,omitempty"`
	StageID string   `json:"stageId,omitempty"`
	Value   int64    `json:"value,omitempty"`
	Notes   string   `json:"notes,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// ProspectUpdate edits a prospect's details. Stage changes go through
// MoveProspect.
type ProspectUpdate struct {
	Name    *string   `json:"name,omitempty"`
	Company *string   `json:"company,omitempty"`
	Email   *string   `json:"email,omitempty"`
	Phone   *string   `json:"phone,omitempty"`
	Website *string   `json:"website,omitempty"`
	Value   *int64    `json:"value,omitempty"`
	Notes   *string   `json:"notes,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

type ProspectQuery = db.ProspectFilter

// CreateProspect files a prospect owned by the caller, in the first stage
// unless another is given.
func (s *Service) CreateProspect(ctx context.Context, in ProspectInput) (*db.Prospect, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.ProspectInput, in); err != nil {
		return nil, err
	}

	p := &db.Prospect{
		Name:    in.Name,
		Company: in.Company,
		Email:   in.Email,
		Phone:   in.Phone,
		Website: in.Website,
		StageID: in.StageID,
		Value:   in.Value,
		Notes:   in.Notes,
		Tags:    in.Tags,
		OwnerID: sess.UserID,
	}
	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		if p.StageID == "" {
			stages, err := q.ListStages(ctx)
			if err != nil {
				return err
			}
			if len(stages) == 0 {
				return apperr.Invalid("stageId", "no pipeline stages exist yet")
			}
			p.StageID = stages[0].ID
		} else if _, err := q.GetStage(ctx, p.StageID); err != nil {
			return notFound(err, "Stage")
		}
		if err := q.CreateProspect(ctx, p); err != nil {
			return err
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			Action:      db.ActionProspectCreated,
			Description: fmt.Sprintf("added prospect %q", p.Name),
			Metadata:    db.ActivityMeta{ProspectID: p.ID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListProspects(ctx context.Context, f ProspectQuery) ([]db.Prospect, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	return s.db.ListProspects(ctx, f)
}

func (s *Service) GetProspect(ctx context.Context, id string) (*db.Prospect, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	p, err := s.db.GetProspect(ctx, id)
	if err != nil {
		return nil, notFound(err, "Prospect")
	}
	return p, nil
}

// ownedProspect loads a prospect the caller owns, or any prospect for an
// admin.
func ownedProspect(ctx context.Context, q *db.Queries, sess *auth.Session, id string) (*db.Prospect, error) {
	p, err := q.GetProspect(ctx, id)
	if err != nil {
		return nil, notFound(err, "Prospect")
	}
	if !sess.IsAdmin() && p.OwnerID != sess.UserID {
		return nil, apperr.Forbidden("Only the owner can change this prospect")
	}
	return p, nil
}

func (s *Service) UpdateProspect(ctx context.Context, id string, u ProspectUpdate) (*db.Prospect, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	var out *db.Prospect
	err = s.db.Tx(ctx, func(q *db.Queries) error {
		p, err := ownedProspect(ctx, q, sess, id)
		if err != nil {
			return err
		}
		if u.Name != nil {
			p.Name = *u.Name
		}
		if u.Company != nil {
			p.Company = *u.Company
		}
		if u.Email != nil {
			p.Email = *u.Email
		}
		if u.Phone != nil {
			p.Phone = *u.Phone
		}
		if u.Website != nil {
			p.Website = *u.Website
		}
		if u.Value != nil {
			p.Value = *u.Value
		}
		if u.Notes != nil {
			p.Notes = *u.Notes
		}
		if u.Tags != nil {
			p.Tags = *u.Tags
		}
		in := ProspectInput{
			Name: p.Name, Company: p.Company, Email: p.Email, Phone: p.Phone, Website: p.Website,
			StageID: p.StageID, Value: p.Value, Notes: p.Notes, Tags: p.Tags,
		}
		if err := s.validate(schema.ProspectInput, in); err != nil {
			return err
		}
		if err := q.UpdateProspect(ctx, p); err != nil {
			return notFound(err, "Prospect")
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteProspect(ctx context.Context, id string) error {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return err
	}
	return s.db.Tx(ctx, func(q *db.Queries) error {
		if _, err := ownedProspect(ctx, q, sess, id); err != nil {
			return err
		}
		return notFound(q.DeleteProspect(ctx, id), "Prospect")
	})
}

// MoveProspect puts a prospect in another stage, tells the owner when
// someone else moved it and then runs the automations of the new stage.
// Moving to the current stage is a no-op.
func (s *Service) MoveProspect(ctx context.Context, id, stageID string) (*db.Prospect, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}

	var moved *db.Prospect
	var to *db.PipelineStage
	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		p, err := ownedProspect(ctx, q, sess, id)
		if err != nil {
			return err
		}
		if p.StageID == stageID {
			moved = p
			return nil
		}
		to, err = q.GetStage(ctx, stageID)
		if err != nil {
			return notFound(err, "Stage")
		}
		fromName := p.StageID
		if from, err := q.GetStage(ctx, p.StageID); err == nil {
			fromName = from.Name
		}

		if err := q.MoveProspect(ctx, p.ID, p.StageID, stageID); err != nil {
			if errors.Is(err, db.ErrConflict) {
				return apperr.Conflict("Prospect was moved by someone else")
			}
			return notFound(err, "Prospect")
		}
		p.StageID = stageID

		b.Record(db.Activity{
			ActorID:     sess.UserID,
			Action:      db.ActionProspectStageChanged,
			Description: fmt.Sprintf("moved %q from %s to %s", p.Name, fromName, to.Name),
			Metadata:    db.ActivityMeta{ProspectID: p.ID, PreviousValue: fromName, NewValue: to.Name},
		})
		if p.OwnerID != sess.UserID {
			b.Notify(db.Notification{
				RecipientID: p.OwnerID,
				Type:        db.NotifyProspectStage,
				Title:       "Prospect moved",
				Message:     fmt.Sprintf("%s moved %q to %s", actorName(sess), p.Name, to.Name),
				Metadata:    db.NotificationMeta{ProspectID: p.ID, UserID: sess.UserID},
			})
		}
		moved = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if to != nil {
		s.runAutomations(ctx, sess, moved, to)
	}
	return moved, nil
}
