package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const projectColumns = `id, name, slug, description, status, color, member_ids, created_by, deadline, created_at, updated_at`

func scanProject(row scanner) (*Project, error) {
	var p Project
	var members string
	var deadline sql.NullInt64
	var created, updated int64
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Status, &p.Color,
		&members, &p.CreatedBy, &deadline, &created, &updated); err != nil {
		return nil, err
	}
	if err := decodeJSON(members, &p.MemberIDs); err != nil {
		return nil, err
	}
	p.MemberIDs = nonNil(p.MemberIDs)
	p.Deadline = fromNullMillis(deadline)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func (q *Queries) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.MemberIDs = nonNil(p.MemberIDs)

	members, err := encodeJSON(p.MemberIDs)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Slug, p.Description, p.Status, p.Color, members, p.CreatedBy,
		nullMillis(p.Deadline), millis(p.CreatedAt), millis(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert project: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (q *Queries) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := scanProject(q.q.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return p, nil
}

func (q *Queries) GetProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	p, err := scanProject(q.q.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE slug = ?", slug))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return p, nil
}

// SlugExists reports whether any project already uses slug.
func (q *Queries) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE slug = ?", slug).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query slug: %w", err)
	}
	return n > 0, nil
}

// ListProjects returns every project, or only those memberID belongs to
// when memberID is set.
func (q *Queries) ListProjects(ctx context.Context, memberID string) ([]Project, error) {
	query := "SELECT " + projectColumns + " FROM projects"
	var args []any
	if memberID != "" {
		query += " WHERE created_by = ? OR EXISTS (SELECT 1 FROM json_each(projects.member_ids) WHERE value = ?)"
		args = append(args, memberID, memberID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (q *Queries) UpdateProject(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now().UTC()
	p.MemberIDs = nonNil(p.MemberIDs)
	members, err := encodeJSON(p.MemberIDs)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx,
		`UPDATE projects SET name = ?, slug = ?, description = ?, status = ?, color = ?,
			member_ids = ?, deadline = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Slug, p.Description, p.Status, p.Color, members,
		nullMillis(p.Deadline), millis(p.UpdatedAt), p.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update project: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes the project. Tasks and their time logs go with it
// through the foreign key cascade.
func (q *Queries) DeleteProject(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsMember reports whether userID created or belongs to the project.
func (p *Project) IsMember(userID string) bool {
	if p.CreatedBy == userID {
		return true
	}
	for _, id := range p.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
