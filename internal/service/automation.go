package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/mail"
	"github.com/lankyjo/coast/internal/schema"
)

type AutomationInput struct {
	Name       string              `json:"name"`
	StageID    string              `json:"stageId"`
	Action     db.AutomationAction `json:"action"`
	TemplateID string              `json:"templateId,omitempty"`
	TaskTitle  string              `json:"taskTitle,omitempty"`
	Enabled    *bool               `json:"enabled,omitempty"`
}

// checkAutomation makes sure the stage and template an automation points
// at exist.
func checkAutomation(ctx context.Context, q *db.Queries, in AutomationInput) error {
	if _, err := q.GetStage(ctx, in.StageID); err != nil {
		return notFound(err, "Stage")
	}
	if in.Action == db.AutomationSendEmail {
		if _, err := q.GetTemplate(ctx, in.TemplateID); err != nil {
			return notFound(err, "Template")
		}
	}
	return nil
}

func (in AutomationInput) apply(a *db.Automation) {
	a.Name, a.StageID, a.Action = in.Name, in.StageID, in.Action
	a.TemplateID, a.TaskTitle = "", ""
	switch in.Action {
	case db.AutomationSendEmail:
		a.TemplateID = in.TemplateID
	case db.AutomationCreateTask:
		a.TaskTitle = in.TaskTitle
	}
	if in.Enabled != nil {
		a.Enabled = *in.Enabled
	}
}

// CreateAutomation stores an automation, enabled unless stated otherwise.
func (s *Service) CreateAutomation(ctx context.Context, in AutomationInput) (*db.Automation, error) {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.AutomationInput, in); err != nil {
		return nil, err
	}
	a := &db.Automation{Trigger: db.TriggerStageEntered, Enabled: true, CreatedBy: sess.UserID}
	in.apply(a)
	err = s.db.Tx(ctx, func(q *db.Queries) error {
		if err := checkAutomation(ctx, q, in); err != nil {
			return err
		}
		return q.CreateAutomation(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAutomations(ctx context.Context) ([]db.Automation, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.db.ListAutomations(ctx)
}

func (s *Service) UpdateAutomation(ctx context.Context, id string, in AutomationInput) (*db.Automation, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(schema.AutomationInput, in); err != nil {
		return nil, err
	}
	var out *db.Automation
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		a, err := q.GetAutomation(ctx, id)
		if err != nil {
			return notFound(err, "Automation")
		}
		if err := checkAutomation(ctx, q, in); err != nil {
			return err
		}
		in.apply(a)
		if err := q.UpdateAutomation(ctx, a); err != nil {
			return notFound(err, "Automation")
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteAutomation(ctx context.Context, id string) error {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return err
	}
	return notFound(s.db.DeleteAutomation(ctx, id), "Automation")
}

// runAutomations fires every enabled automation of the stage a prospect
// just entered. A failing automation is logged and skipped.
func (s *Service) runAutomations(ctx context.Context, sess *auth.Session, p *db.Prospect, stage *db.PipelineStage) {
	ctx = context.WithoutCancel(ctx)
	autos, err := s.db.ListStageAutomations(ctx, stage.ID)
	if err != nil {
		s.logger.Error("error listing automations", "stage", stage.ID, "err", err)
		return
	}
	for _, a := range autos {
		if err := s.runAutomation(ctx, sess, a, p); err != nil {
			s.logger.Error("automation failed", "automation", a.ID, "action", a.Action, "prospect", p.ID, "err", err)
			continue
		}
		err := s.commit(ctx, func(_ *db.Queries, b *events.Batch) error {
			b.Record(db.Activity{
				ActorID:     sess.UserID,
				Action:      db.ActionAutomationRan,
				Description: fmt.Sprintf("automation %q ran for %q", a.Name, p.Name),
				Metadata:    db.ActivityMeta{ProspectID: p.ID, NewValue: string(a.Action)},
			})
			return nil
		})
		if err != nil {
			s.logger.Error("error recording automation run", "automation", a.ID, "err", err)
		}
	}
}

func (s *Service) runAutomation(ctx context.Context, sess *auth.Session, a db.Automation, p *db.Prospect) error {
	switch a.Action {
	case db.AutomationSendEmail:
		t, err := s.db.GetTemplate(ctx, a.TemplateID)
		if err != nil {
			return fmt.Errorf("load template %s: %w", a.TemplateID, err)
		}
		_, err = s.sendTemplate(ctx, sess, t, p)
		return err

	case db.AutomationCreateTask:
		if s.cfg.AutomationProjectID == "" {
			return errors.New("no automation project configured")
		}
		title := mail.Merge(a.TaskTitle, mail.ProspectFields(p.Name, p.Company, p.Email, p.Phone, p.Website, sess.Name, sess.Email))
		return s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
			_, err := s.insertTask(ctx, q, b, sess, TaskInput{
				Title:       title,
				Description: fmt.Sprintf("Created by automation %q for prospect %s.", a.Name, p.Name),
				ProjectID:   s.cfg.AutomationProjectID,
				AssigneeIDs: []string{p.OwnerID},
			})
			return err
		})

	case db.AutomationNotifyOwner:
		return s.commit(ctx, func(_ *db.Queries, b *events.Batch) error {
			b.Notify(db.Notification{
				RecipientID: p.OwnerID,
				Type:        db.NotifyAutomation,
				Title:       a.Name,
				Message:     fmt.Sprintf("%q entered a stage watched by %q", p.Name, a.Name),
				Metadata:    db.NotificationMeta{ProspectID: p.ID, UserID: sess.UserID},
			})
			return nil
		})
	}
	return fmt.Errorf("unknown automation action %q", a.Action)
}
