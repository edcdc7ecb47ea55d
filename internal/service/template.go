package service

import (
	"context"
	"fmt"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/mail"
	"github.com/lankyjo/coast/internal/schema"
)

type TemplateInput struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Category string `json:"category,omitempty"`
}

func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*db.EmailTemplate, error) {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.TemplateInput, in); err != nil {
		return nil, err
	}
	t := &db.EmailTemplate{Name: in.Name, Subject: in.Subject, Body: in.Body, Category: in.Category, CreatedBy: sess.UserID}
	if err := s.db.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ListTemplates(ctx context.Context, category string) ([]db.EmailTemplate, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	return s.db.ListTemplates(ctx, category)
}

func (s *Service) GetTemplate(ctx context.Context, id string) (*db.EmailTemplate, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	t, err := s.db.GetTemplate(ctx, id)
	if err != nil {
		return nil, notFound(err, "Template")
	}
	return t, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, id string, in TemplateInput) (*db.EmailTemplate, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(schema.TemplateInput, in); err != nil {
		return nil, err
	}
	var out *db.EmailTemplate
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		t, err := q.GetTemplate(ctx, id)
		if err != nil {
			return notFound(err, "Template")
		}
		t.Name, t.Subject, t.Body, t.Category = in.Name, in.Subject, in.Body, in.Category
		if err := q.UpdateTemplate(ctx, t); err != nil {
			return notFound(err, "Template")
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return err
	}
	return notFound(s.db.DeleteTemplate(ctx, id), "Template")
}

// compose renders a template for a prospect, signed by the caller.
func compose(sess *auth.Session, t *db.EmailTemplate, p *db.Prospect) (mail.Message, error) {
	fields := mail.ProspectFields(p.Name, p.Company, p.Email, p.Phone, p.Website, sess.Name, sess.Email)
	msg, err := mail.Compose(p.Email, t.Subject, t.Body, fields)
	if err != nil {
		return mail.Message{}, fmt.Errorf("render template: %w", err)
	}
	return msg, nil
}

// PreviewTemplate renders a template for a prospect without sending it.
func (s *Service) PreviewTemplate(ctx context.Context, templateID, prospectID string) (mail.Message, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return mail.Message{}, err
	}
	t, err := s.db.GetTemplate(ctx, templateID)
	if err != nil {
		return mail.Message{}, notFound(err, "Template")
	}
	p, err := s.db.GetProspect(ctx, prospectID)
	if err != nil {
		return mail.Message{}, notFound(err, "Prospect")
	}
	return compose(sess, t, p)
}

// SendTemplate emails a prospect, records the email_sent activity and
// stamps the prospect's last contact time.
func (s *Service) SendTemplate(ctx context.Context, templateID, prospectID string) (mail.Message, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return mail.Message{}, err
	}
	t, err := s.db.GetTemplate(ctx, templateID)
	if err != nil {
		return mail.Message{}, notFound(err, "Template")
	}
	p, err := s.db.GetProspect(ctx, prospectID)
	if err != nil {
		return mail.Message{}, notFound(err, "Prospect")
	}
	return s.sendTemplate(ctx, sess, t, p)
}

func (s *Service) sendTemplate(ctx context.Context, sess *auth.Session, t *db.EmailTemplate, p *db.Prospect) (mail.Message, error) {
	if p.Email == "" {
		return mail.Message{}, apperr.Invalid("email", "Prospect has no email address")
	}
	msg, err := compose(sess, t, p)
	if err != nil {
		return mail.Message{}, err
	}
	if res := mail.Deliver(ctx, s.mail, msg); !res.Success {
		return mail.Message{}, fmt.Errorf("send email: %s", res.Error)
	}

	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		if err := q.TouchProspectContacted(ctx, p.ID, s.Now()); err != nil {
			return notFound(err, "Prospect")
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			Action:      db.ActionEmailSent,
			Description: fmt.Sprintf("emailed %q to %s", msg.Subject, p.Name),
			Metadata:    db.ActivityMeta{ProspectID: p.ID, NewValue: t.ID},
		})
		return nil
	})
	if err != nil {
		// The email is already out; only the bookkeeping failed.
		s.logger.Error("error recording sent email", "prospect", p.ID, "err", err)
	}
	return msg, nil
}
