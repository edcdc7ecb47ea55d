package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Pipeline stages

const stageColumns = `id, name, position, color, is_won, is_lost, created_at`

func scanStage(row scanner) (*PipelineStage, error) {
	var s PipelineStage
	var won, lost int
	var created int64
	if err := row.Scan(&s.ID, &s.Name, &s.Position, &s.Color, &won, &lost, &created); err != nil {
		return nil, err
	}
	s.IsWon = won != 0
	s.IsLost = lost != 0
	s.CreatedAt = fromMillis(created)
	return &s, nil
}

func (q *Queries) CreateStage(ctx context.Context, s *PipelineStage) error {
	s.ID = NewID()
	s.CreatedAt = time.Now().UTC()
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO pipeline_stages (`+stageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Position, s.Color, boolInt(s.IsWon), boolInt(s.IsLost), millis(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}

func (q *Queries) GetStage(ctx context.Context, id string) (*PipelineStage, error) {
	s, err := scanStage(q.q.QueryRowContext(ctx, "SELECT "+stageColumns+" FROM pipeline_stages WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query stage: %w", err)
	}
	return s, nil
}

// ListStages returns stages in pipeline order.
func (q *Queries) ListStages(ctx context.Context) ([]PipelineStage, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT "+stageColumns+" FROM pipeline_stages ORDER BY position, created_at")
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []PipelineStage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, *s)
	}
	return stages, rows.Err()
}

func (q *Queries) UpdateStage(ctx context.Context, s *PipelineStage) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE pipeline_stages SET name = ?, position = ?, color = ?, is_won = ?, is_lost = ? WHERE id = ?",
		s.Name, s.Position, s.Color, boolInt(s.IsWon), boolInt(s.IsLost), s.ID,
	)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) SetStagePosition(ctx context.Context, id string, position int) error {
	res, err := q.q.ExecContext(ctx, "UPDATE pipeline_stages SET position = ? WHERE id = ?", position, id)
	if err != nil {
		return fmt.Errorf("update stage position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteStage(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM pipeline_stages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) CountProspectsInStage(ctx context.Context, stageID string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM prospects WHERE stage_id = ?", stageID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count prospects: %w", err)
	}
	return n, nil
}

// Prospects

const prospectColumns = `id, name, company, email, phone, website, stage_id, value, notes, tags,
	owner_id, last_contacted_at, created_at, updated_at`

func scanProspect(row scanner) (*Prospect, error) {
	var p Prospect
	var tags string
	var contacted sql.NullInt64
	var created, updated int64
	if err := row.Scan(&p.ID, &p.Name, &p.Company, &p.Email, &p.Phone, &p.Website, &p.StageID,
		&p.Value, &p.Notes, &tags, &p.OwnerID, &contacted, &created, &updated); err != nil {
		return nil, err
	}
	if err := decodeJSON(tags, &p.Tags); err != nil {
		return nil, err
	}
	p.Tags = nonNil(p.Tags)
	p.LastContactedAt = fromNullMillis(contacted)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func (q *Queries) CreateProspect(ctx context.Context, p *Prospect) error {
	p.ID = NewID()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Tags = nonNil(p.Tags)
	tags, err := encodeJSON(p.Tags)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO prospects (`+prospectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Company, p.Email, p.Phone, p.Website, p.StageID, p.Value, p.Notes, tags,
		p.OwnerID, nullMillis(p.LastContactedAt), millis(now), millis(now),
	)
	if err != nil {
		return fmt.Errorf("insert prospect: %w", err)
	}
	return nil
}

func (q *Queries) GetProspect(ctx context.Context, id string) (*Prospect, error) {
	p, err := scanProspect(q.q.QueryRowContext(ctx, "SELECT "+prospectColumns+" FROM prospects WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query prospect: %w", err)
	}
	return p, nil
}

type ProspectFilter struct {
	StageID string
	OwnerID string
	// Search matches name, company or email, case-insensitively.
	Search string
}

func (q *Queries) ListProspects(ctx context.Context, f ProspectFilter) ([]Prospect, error) {
	var where []string
	var args []any
	if f.StageID != "" {
		where = append(where, "stage_id = ?")
		args = append(args, f.StageID)
	}
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(company) LIKE ? OR LOWER(email) LIKE ?)")
		args = append(args, like, like, like)
	}

	query := "SELECT " + prospectColumns + " FROM prospects"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prospects: %w", err)
	}
	defer rows.Close()

	var out []Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prospect: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateProspect(ctx context.Context, p *Prospect) error {
	p.UpdatedAt = time.Now().UTC()
	p.Tags = nonNil(p.Tags)
	tags, err := encodeJSON(p.Tags)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx,
		`UPDATE prospects SET name = ?, company = ?, email = ?, phone = ?, website = ?, stage_id = ?,
			value = ?, notes = ?, tags = ?, owner_id = ?, last_contacted_at = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Company, p.Email, p.Phone, p.Website, p.StageID, p.Value, p.Notes, tags,
		p.OwnerID, nullMillis(p.LastContactedAt), millis(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update prospect: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveProspect changes the stage only if the prospect is still in fromStage,
// so two concurrent moves cannot both fire stage-entered automations.
func (q *Queries) MoveProspect(ctx context.Context, id, fromStage, toStage string) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE prospects SET stage_id = ?, updated_at = ? WHERE id = ? AND stage_id = ?",
		toStage, millis(time.Now()), id, fromStage,
	)
	if err != nil {
		return fmt.Errorf("move prospect: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetProspect(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (q *Queries) TouchProspectContacted(ctx context.Context, id string, at time.Time) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE prospects SET last_contacted_at = ?, updated_at = ? WHERE id = ?",
		millis(at), millis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update prospect contacted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteProspect(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM prospects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete prospect: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
