package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const invitationTTL = 7 * 24 * time.Hour

const invitationColumns = `id, email, role, token, invited_by, status, expires_at, created_at`

func scanInvitation(row scanner) (*Invitation, error) {
	var inv Invitation
	var expires, created int64
	if err := row.Scan(&inv.ID, &inv.Email, &inv.Role, &inv.Token, &inv.InvitedBy, &inv.Status,
		&expires, &created); err != nil {
		return nil, err
	}
	inv.ExpiresAt = fromMillis(expires)
	inv.CreatedAt = fromMillis(created)
	return &inv, nil
}

// CreateInvitation issues a pending invitation with a fresh token that
// expires in seven days.
func (q *Queries) CreateInvitation(ctx context.Context, email string, role Role, invitedBy string) (*Invitation, error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	inv := &Invitation{
		ID:        NewID(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
		Token:     token,
		InvitedBy: invitedBy,
		Status:    InvitationPending,
		ExpiresAt: now.Add(invitationTTL),
		CreatedAt: now,
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO invitations (`+invitationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.Status,
		millis(inv.ExpiresAt), millis(inv.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	return inv, nil
}

func (q *Queries) GetInvitation(ctx context.Context, id string) (*Invitation, error) {
	inv, err := scanInvitation(q.q.QueryRowContext(ctx, "SELECT "+invitationColumns+" FROM invitations WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query invitation: %w", err)
	}
	return inv, nil
}

func (q *Queries) GetInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	inv, err := scanInvitation(q.q.QueryRowContext(ctx, "SELECT "+invitationColumns+" FROM invitations WHERE token = ?", token))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query invitation: %w", err)
	}
	return inv, nil
}

func (q *Queries) ListInvitations(ctx context.Context) ([]Invitation, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT "+invitationColumns+" FROM invitations ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("query invitations: %w", err)
	}
	defer rows.Close()

	var out []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// SetInvitationStatus moves a pending invitation to status. An invitation
// that is no longer pending yields ErrConflict.
func (q *Queries) SetInvitationStatus(ctx context.Context, id string, status InvitationStatus) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE invitations SET status = ? WHERE id = ? AND status = 'pending'", status, id)
	if err != nil {
		return fmt.Errorf("update invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetInvitation(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}
