package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/schema"
)

type ProjectInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Status      db.ProjectStatus `json:"status,omitempty"`
	Color       string           `json:"color,omitempty"`
	MemberIDs   []string         `json:"memberIds,omitempty"`
	Deadline    string           `json:"deadline,omitempty"`
}

type ProjectUpdate struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Status      *db.ProjectStatus `json:"status,omitempty"`
	Color       *string           `json:"color,omitempty"`
	MemberIDs   *[]string         `json:"memberIds,omitempty"`
	Deadline    *string           `json:"deadline,omitempty"`
}

// Slugify lower-cases name, folds accented letters to their base letter
// and joins the remaining alphanumeric runs with hyphens.
func Slugify(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		case b.Len() > 0 && !hyphen:
			b.WriteByte('-')
			hyphen = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "project"
	}
	return slug
}

func uniqueSlug(ctx context.Context, q *db.Queries, name string) (string, error) {
	base := Slugify(name)
	slug := base
	for i := 2; ; i++ {
		exists, err := q.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*db.Project, error) {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.ProjectInput, in); err != nil {
		return nil, err
	}
	deadline, err := parseDate("deadline", in.Deadline)
	if err != nil {
		return nil, err
	}

	p := &db.Project{
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		Color:       in.Color,
		MemberIDs:   dedupe(in.MemberIDs),
		CreatedBy:   sess.UserID,
		Deadline:    deadline,
	}
	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		slug, err := uniqueSlug(ctx, q, in.Name)
		if err != nil {
			return err
		}
		p.Slug = slug
		if err := q.CreateProject(ctx, p); err != nil {
			return err
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   p.ID,
			Action:      db.ActionProjectCreated,
			Description: fmt.Sprintf("created project %q", p.Name),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns every project to admins and the caller's own
// projects to members.
func (s *Service) ListProjects(ctx context.Context) ([]db.Project, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if sess.IsAdmin() {
		return s.db.ListProjects(ctx, "")
	}
	return s.db.ListProjects(ctx, sess.UserID)
}

func (s *Service) GetProject(ctx context.Context, id string) (*db.Project, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.db.GetProject(ctx, id)
	if err != nil {
		return nil, notFound(err, "Project")
	}
	if !sess.IsAdmin() && !p.IsMember(sess.UserID) {
		return nil, apperr.NotFound("Project")
	}
	return p, nil
}

func (s *Service) GetProjectBySlug(ctx context.Context, slug string) (*db.Project, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	p, err := s.db.GetProjectBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, "Project")
	}
	return s.GetProject(ctx, p.ID)
}

// UpdateProject applies a partial update. The slug follows the name.
func (s *Service) UpdateProject(ctx context.Context, id string, u ProjectUpdate) (*db.Project, error) {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	var out *db.Project
	err = s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		p, err := q.GetProject(ctx, id)
		if err != nil {
			return notFound(err, "Project")
		}
		in := ProjectInput{
			Name:        p.Name,
			Description: p.Description,
			Status:      p.Status,
			Color:       p.Color,
			MemberIDs:   p.MemberIDs,
		}
		if u.Name != nil {
			in.Name = *u.Name
		}
		if u.Description != nil {
			in.Description = *u.Description
		}
		if u.Status != nil {
			in.Status = *u.Status
		}
		if u.Color != nil {
			in.Color = *u.Color
		}
		if u.MemberIDs != nil {
			in.MemberIDs = dedupe(*u.MemberIDs)
		}
		if err := s.validate(schema.ProjectInput, in); err != nil {
			return err
		}
		if u.Deadline != nil {
			d, err := parseDate("deadline", *u.Deadline)
			if err != nil {
				return err
			}
			p.Deadline = d
		}

		if in.Name != p.Name {
			slug, err := uniqueSlug(ctx, q, in.Name)
			if err != nil {
				return err
			}
			p.Slug = slug
		}
		p.Name, p.Description, p.Status, p.Color, p.MemberIDs = in.Name, in.Description, in.Status, in.Color, in.MemberIDs
		if err := q.UpdateProject(ctx, p); err != nil {
			return notFound(err, "Project")
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   p.ID,
			Action:      db.ActionProjectUpdated,
			Description: fmt.Sprintf("updated project %q", p.Name),
		})
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProject removes a project with its tasks and their time logs.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	return s.commit(ctx, func(q *db.Queries, b *events.Batch) error {
		p, err := q.GetProject(ctx, id)
		if err != nil {
			return notFound(err, "Project")
		}
		if err := q.DeleteProject(ctx, id); err != nil {
			return notFound(err, "Project")
		}
		b.Record(db.Activity{
			ActorID:     sess.UserID,
			ProjectID:   p.ID,
			Action:      db.ActionProjectDeleted,
			Description: fmt.Sprintf("deleted project %q", p.Name),
		})
		return nil
	})
}

func (s *Service) AddProjectMember(ctx context.Context, projectID, userID string) (*db.Project, error) {
	return s.editMembers(ctx, projectID, func(ids []string) []string {
		return dedupe(append(ids, userID))
	})
}

func (s *Service) RemoveProjectMember(ctx context.Context, projectID, userID string) (*db.Project, error) {
	return s.editMembers(ctx, projectID, func(ids []string) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != userID {
				out = append(out, id)
			}
		}
		return out
	})
}

func (s *Service) editMembers(ctx context.Context, projectID string, fn func([]string) []string) (*db.Project, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	var out *db.Project
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		p, err := q.GetProject(ctx, projectID)
		if err != nil {
			return notFound(err, "Project")
		}
		p.MemberIDs = fn(append([]string(nil), p.MemberIDs...))
		if err := q.UpdateProject(ctx, p); err != nil {
			return notFound(err, "Project")
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
