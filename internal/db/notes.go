package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const noteColumns = `id, owner_id, content, color, x, y, width, height, z_index, pinned, created_at, updated_at`

func scanNote(row scanner) (*StickyNote, error) {
	var n StickyNote
	var pinned int
	var created, updated int64
	if err := row.Scan(&n.ID, &n.OwnerID, &n.Content, &n.Color, &n.X, &n.Y, &n.Width, &n.Height,
		&n.ZIndex, &pinned, &created, &updated); err != nil {
		return nil, err
	}
	n.Pinned = pinned != 0
	n.CreatedAt = fromMillis(created)
	n.UpdatedAt = fromMillis(updated)
	return &n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (q *Queries) CreateNote(ctx context.Context, n *StickyNote) error {
	n.ID = NewID()
	if n.Width == 0 {
		n.Width = 200
	}
	if n.Height == 0 {
		n.Height = 200
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO sticky_notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.OwnerID, n.Content, n.Color, n.X, n.Y, n.Width, n.Height, n.ZIndex,
		boolInt(n.Pinned), millis(now), millis(now),
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (q *Queries) GetNote(ctx context.Context, id string) (*StickyNote, error) {
	n, err := scanNote(q.q.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM sticky_notes WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query note: %w", err)
	}
	return n, nil
}

// ListNotes returns the owner's notes, pinned first, then by z-index.
func (q *Queries) ListNotes(ctx context.Context, ownerID string) ([]StickyNote, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM sticky_notes WHERE owner_id = ? ORDER BY pinned DESC, z_index, created_at",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []StickyNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func (q *Queries) UpdateNote(ctx context.Context, n *StickyNote) error {
	n.UpdatedAt = time.Now().UTC()
	res, err := q.q.ExecContext(ctx,
		`UPDATE sticky_notes SET content = ?, color = ?, x = ?, y = ?, width = ?, height = ?,
			z_index = ?, pinned = ?, updated_at = ?
		 WHERE id = ?`,
		n.Content, n.Color, n.X, n.Y, n.Width, n.Height, n.ZIndex, boolInt(n.Pinned),
		millis(n.UpdatedAt), n.ID,
	)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if c, _ := res.RowsAffected(); c == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteNote(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM sticky_notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if c, _ := res.RowsAffected(); c == 0 {
		return ErrNotFound
	}
	return nil
}
