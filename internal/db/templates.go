package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Email templates

const templateColumns = `id, name, subject, body, category, created_by, created_at, updated_at`

func scanTemplate(row scanner) (*EmailTemplate, error) {
	var t EmailTemplate
	var created, updated int64
	if err := row.Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.Category, &t.CreatedBy, &created, &updated); err != nil {
		return nil, err
	}
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return &t, nil
}

func (q *Queries) CreateTemplate(ctx context.Context, t *EmailTemplate) error {
	t.ID = NewID()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO email_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Subject, t.Body, t.Category, t.CreatedBy, millis(now), millis(now),
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (q *Queries) GetTemplate(ctx context.Context, id string) (*EmailTemplate, error) {
	t, err := scanTemplate(q.q.QueryRowContext(ctx, "SELECT "+templateColumns+" FROM email_templates WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}
	return t, nil
}

func (q *Queries) ListTemplates(ctx context.Context, category string) ([]EmailTemplate, error) {
	query := "SELECT " + templateColumns + " FROM email_templates"
	var args []any
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY name"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []EmailTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateTemplate(ctx context.Context, t *EmailTemplate) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := q.q.ExecContext(ctx,
		"UPDATE email_templates SET name = ?, subject = ?, body = ?, category = ?, updated_at = ? WHERE id = ?",
		t.Name, t.Subject, t.Body, t.Category, millis(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteTemplate(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM email_templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Automations

const automationColumns = `id, name, trigger_kind, stage_id, action, template_id, task_title, enabled, created_by, created_at`

func scanAutomation(row scanner) (*Automation, error) {
	var a Automation
	var enabled int
	var created int64
	if err := row.Scan(&a.ID, &a.Name, &a.Trigger, &a.StageID, &a.Action, &a.TemplateID,
		&a.TaskTitle, &enabled, &a.CreatedBy, &created); err != nil {
		return nil, err
	}
	a.Enabled = enabled != 0
	a.CreatedAt = fromMillis(created)
	return &a, nil
}

func (q *Queries) CreateAutomation(ctx context.Context, a *Automation) error {
	a.ID = NewID()
	if a.Trigger == "" {
		a.Trigger = TriggerStageEntered
	}
	a.CreatedAt = time.Now().UTC()
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO automations (`+automationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Trigger, a.StageID, a.Action, a.TemplateID, a.TaskTitle,
		boolInt(a.Enabled), a.CreatedBy, millis(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert automation: %w", err)
	}
	return nil
}

func (q *Queries) GetAutomation(ctx context.Context, id string) (*Automation, error) {
	a, err := scanAutomation(q.q.QueryRowContext(ctx, "SELECT "+automationColumns+" FROM automations WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query automation: %w", err)
	}
	return a, nil
}

func (q *Queries) ListAutomations(ctx context.Context) ([]Automation, error) {
	return q.listAutomations(ctx, "SELECT "+automationColumns+" FROM automations ORDER BY created_at, id")
}

// ListStageAutomations returns the enabled automations that fire when a
// prospect enters stageID.
func (q *Queries) ListStageAutomations(ctx context.Context, stageID string) ([]Automation, error) {
	return q.listAutomations(ctx,
		"SELECT "+automationColumns+" FROM automations WHERE enabled = 1 AND trigger_kind = ? AND stage_id = ? ORDER BY created_at, id",
		TriggerStageEntered, stageID)
}

func (q *Queries) listAutomations(ctx context.Context, query string, args ...any) ([]Automation, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query automations: %w", err)
	}
	defer rows.Close()

	var out []Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan automation: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateAutomation(ctx context.Context, a *Automation) error {
	res, err := q.q.ExecContext(ctx,
		`UPDATE automations SET name = ?, stage_id = ?, action = ?, template_id = ?, task_title = ?, enabled = ?
		 WHERE id = ?`,
		a.Name, a.StageID, a.Action, a.TemplateID, a.TaskTitle, boolInt(a.Enabled), a.ID,
	)
	if err != nil {
		return fmt.Errorf("update automation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteAutomation(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM automations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete automation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
