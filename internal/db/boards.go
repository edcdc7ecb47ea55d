package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Daily boards

func scanDailyBoard(row scanner) (*DailyBoard, error) {
	var b DailyBoard
	var created int64
	if err := row.Scan(&b.ID, &b.Date, &b.CreatedBy, &created); err != nil {
		return nil, err
	}
	b.CreatedAt = fromMillis(created)
	return &b, nil
}

// GetOrCreateDailyBoard returns the board for date (YYYY-MM-DD), inserting
// it first if no board exists. Concurrent callers converge on one row.
func (q *Queries) GetOrCreateDailyBoard(ctx context.Context, date, createdBy string) (*DailyBoard, error) {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO daily_boards (id, date, created_by, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(date) DO NOTHING`,
		NewID(), date, createdBy, millis(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert daily board: %w", err)
	}
	return q.GetDailyBoardByDate(ctx, date)
}

func (q *Queries) GetDailyBoardByDate(ctx context.Context, date string) (*DailyBoard, error) {
	b, err := scanDailyBoard(q.q.QueryRowContext(ctx,
		"SELECT id, date, created_by, created_at FROM daily_boards WHERE date = ?", date))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query daily board: %w", err)
	}
	return b, nil
}

func (q *Queries) GetDailyBoard(ctx context.Context, id string) (*DailyBoard, error) {
	b, err := scanDailyBoard(q.q.QueryRowContext(ctx,
		"SELECT id, date, created_by, created_at FROM daily_boards WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query daily board: %w", err)
	}
	return b, nil
}

func (q *Queries) ListDailyBoards(ctx context.Context, limit int) ([]DailyBoard, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := q.q.QueryContext(ctx,
		"SELECT id, date, created_by, created_at FROM daily_boards ORDER BY date DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query daily boards: %w", err)
	}
	defer rows.Close()

	var boards []DailyBoard
	for rows.Next() {
		b, err := scanDailyBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily board: %w", err)
		}
		boards = append(boards, *b)
	}
	return boards, rows.Err()
}

// Custom boards

const customBoardColumns = `id, name, description, color, owner_id, member_ids, created_at, updated_at`

func scanCustomBoard(row scanner) (*CustomBoard, error) {
	var b CustomBoard
	var members string
	var created, updated int64
	if err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Color, &b.OwnerID, &members, &created, &updated); err != nil {
		return nil, err
	}
	if err := decodeJSON(members, &b.MemberIDs); err != nil {
		return nil, err
	}
	b.MemberIDs = nonNil(b.MemberIDs)
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return &b, nil
}

func (q *Queries) CreateCustomBoard(ctx context.Context, b *CustomBoard) error {
	b.ID = NewID()
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	b.MemberIDs = nonNil(b.MemberIDs)
	members, err := encodeJSON(b.MemberIDs)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO custom_boards (`+customBoardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Description, b.Color, b.OwnerID, members, millis(now), millis(now),
	)
	if err != nil {
		return fmt.Errorf("insert custom board: %w", err)
	}
	return nil
}

func (q *Queries) GetCustomBoard(ctx context.Context, id string) (*CustomBoard, error) {
	b, err := scanCustomBoard(q.q.QueryRowContext(ctx,
		"SELECT "+customBoardColumns+" FROM custom_boards WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query custom board: %w", err)
	}
	return b, nil
}

// ListCustomBoards returns boards userID owns or is a member of.
func (q *Queries) ListCustomBoards(ctx context.Context, userID string) ([]CustomBoard, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+customBoardColumns+` FROM custom_boards
		 WHERE owner_id = ? OR EXISTS (SELECT 1 FROM json_each(custom_boards.member_ids) WHERE value = ?)
		 ORDER BY created_at DESC, id DESC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query custom boards: %w", err)
	}
	defer rows.Close()

	var boards []CustomBoard
	for rows.Next() {
		b, err := scanCustomBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan custom board: %w", err)
		}
		boards = append(boards, *b)
	}
	return boards, rows.Err()
}

func (q *Queries) UpdateCustomBoard(ctx context.Context, b *CustomBoard) error {
	b.UpdatedAt = time.Now().UTC()
	b.MemberIDs = nonNil(b.MemberIDs)
	members, err := encodeJSON(b.MemberIDs)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx,
		"UPDATE custom_boards SET name = ?, description = ?, color = ?, member_ids = ?, updated_at = ? WHERE id = ?",
		b.Name, b.Description, b.Color, members, millis(b.UpdatedAt), b.ID,
	)
	if err != nil {
		return fmt.Errorf("update custom board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCustomBoard removes the board. Its tasks stay and lose the board
// reference.
func (q *Queries) DeleteCustomBoard(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM custom_boards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete custom board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasAccess reports whether userID owns or belongs to the board.
func (b *CustomBoard) HasAccess(userID string) bool {
	if b.OwnerID == userID {
		return true
	}
	for _, id := range b.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
