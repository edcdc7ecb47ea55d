package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	magicTokenTTL = 15 * time.Minute
	sessionTTL    = 30 * 24 * time.Hour
)

// Users

const userColumns = `id, email, name, role, created_at`

func scanUser(row scanner) (*User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

func (q *Queries) CreateUser(ctx context.Context, email, name string, role Role) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	u := &User{ID: NewID(), Email: email, Name: name, Role: role, CreatedAt: time.Now().UTC()}
	_, err := q.q.ExecContext(ctx,
		"INSERT INTO users (id, email, name, role, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Email, u.Name, u.Role, millis(u.CreatedAt),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert user: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetOrCreateUser returns the user with email, creating a member if absent.
func (q *Queries) GetOrCreateUser(ctx context.Context, email string) (*User, error) {
	u, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return q.CreateUser(ctx, email, "", RoleMember)
}

func (q *Queries) GetUserByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(q.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(q.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY name, email")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (q *Queries) SetUserRole(ctx context.Context, id string, role Role) error {
	res, err := q.q.ExecContext(ctx, "UPDATE users SET role = ? WHERE id = ?", role, id)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) SetUserName(ctx context.Context, id, name string) error {
	res, err := q.q.ExecContext(ctx, "UPDATE users SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TeamWorkload lists every user with the count of non-done tasks assigned
// to them.
func (q *Queries) TeamWorkload(ctx context.Context) ([]TeamMember, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT u.id, u.email, u.name, u.role, u.created_at,
			(SELECT COUNT(*) FROM tasks t, json_each(t.assignee_ids) j
			 WHERE j.value = u.id AND t.status != 'done')
		FROM users u
		ORDER BY u.name, u.email`)
	if err != nil {
		return nil, fmt.Errorf("query workload: %w", err)
	}
	defer rows.Close()

	var team []TeamMember
	for rows.Next() {
		var m TeamMember
		var created int64
		if err := rows.Scan(&m.ID, &m.Email, &m.Name, &m.Role, &created, &m.OpenTasks); err != nil {
			return nil, fmt.Errorf("scan workload: %w", err)
		}
		m.CreatedAt = fromMillis(created)
		team = append(team, m)
	}
	return team, rows.Err()
}

// Magic tokens

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (q *Queries) CreateMagicToken(ctx context.Context, email string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	expires := time.Now().Add(magicTokenTTL)

	_, err = q.q.ExecContext(ctx,
		"INSERT INTO magic_tokens (email, token, expires_at, status) VALUES (?, ?, ?, 'pending')",
		strings.ToLower(strings.TrimSpace(email)), token, millis(expires),
	)
	if err != nil {
		return "", fmt.Errorf("insert token: %w", err)
	}
	return token, nil
}

func (q *Queries) ApproveMagicToken(ctx context.Context, token string) (string, error) {
	var email string
	var used int
	var expiresAt int64
	err := q.q.QueryRowContext(ctx,
		"SELECT email, used, expires_at FROM magic_tokens WHERE token = ?", token,
	).Scan(&email, &used, &expiresAt)
	if err != nil {
		return "", fmt.Errorf("token not found")
	}
	if used != 0 {
		return "", fmt.Errorf("token already used")
	}
	if time.Now().After(fromMillis(expiresAt)) {
		return "", fmt.Errorf("token expired")
	}

	_, err = q.q.ExecContext(ctx, "UPDATE magic_tokens SET status = 'approved' WHERE token = ?", token)
	if err != nil {
		return "", fmt.Errorf("approve token: %w", err)
	}
	return email, nil
}

// CheckMagicTokenStatus reports pending, approved, used or expired.
func (q *Queries) CheckMagicTokenStatus(ctx context.Context, token string) (status string, email string, err error) {
	var used int
	var expiresAt int64
	err = q.q.QueryRowContext(ctx,
		"SELECT email, used, status, expires_at FROM magic_tokens WHERE token = ?", token,
	).Scan(&email, &used, &status, &expiresAt)
	if err != nil {
		return "", "", fmt.Errorf("token not found")
	}
	if used != 0 {
		return "used", email, nil
	}
	if time.Now().After(fromMillis(expiresAt)) {
		return "expired", email, nil
	}
	return status, email, nil
}

// MarkMagicTokenUsed flips the used flag once. A second call reports
// ErrConflict so two pollers cannot both mint a session.
func (q *Queries) MarkMagicTokenUsed(ctx context.Context, token string) error {
	res, err := q.q.ExecContext(ctx, "UPDATE magic_tokens SET used = 1 WHERE token = ? AND used = 0", token)
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// Sessions

func (q *Queries) CreateSession(ctx context.Context, userID string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	expires := time.Now().Add(sessionTTL)

	_, err = q.q.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)",
		userID, token, millis(expires),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

func (q *Queries) GetUserBySession(ctx context.Context, token string) (*User, error) {
	var userID string
	var expiresAt int64
	err := q.q.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE token = ?", token,
	).Scan(&userID, &expiresAt)
	if err != nil {
		return nil, fmt.Errorf("session not found")
	}
	if time.Now().After(fromMillis(expiresAt)) {
		q.q.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
		return nil, fmt.Errorf("session expired")
	}
	return q.GetUserByID(ctx, userID)
}

func (q *Queries) DeleteSession(ctx context.Context, token string) {
	q.q.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
}
