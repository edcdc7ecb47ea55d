package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/mail"
	"github.com/lankyjo/coast/internal/schema"
)

// Magic link states reported to the polling client.
const (
	LoginPending  = "pending"
	LoginApproved = "approved"
	LoginUsed     = "used"
	LoginExpired  = "expired"
)

type MagicLinkInput struct {
	Email string `json:"email"`
}

// LoginStatus is the answer to a poll. Session is only set on the one
// poll that completes the sign-in.
type LoginStatus struct {
	Status  string   `json:"status"`
	User    *db.User `json:"user,omitempty"`
	Session string   `json:"-"`
}

// RequestMagicLink creates a pending login token and emails the approval
// link. The token is returned so the requesting client can poll it.
func (s *Service) RequestMagicLink(ctx context.Context, email string) (string, error) {
	in := MagicLinkInput{Email: strings.ToLower(strings.TrimSpace(email))}
	if err := s.validate(schema.MagicLinkInput, in); err != nil {
		return "", err
	}
	token, err := s.db.CreateMagicToken(ctx, in.Email)
	if err != nil {
		return "", err
	}
	if res := mail.Deliver(ctx, s.mail, mail.MagicLink(in.Email, s.cfg.BaseURL, token)); !res.Success {
		return "", fmt.Errorf("send login link: %s", res.Error)
	}
	return token, nil
}

// ApproveMagicLink marks a token approved from the emailed link and
// returns the email it was issued for.
func (s *Service) ApproveMagicLink(ctx context.Context, token string) (string, error) {
	status, _, err := s.db.CheckMagicTokenStatus(ctx, token)
	if err != nil {
		return "", apperr.NotFound("Login link")
	}
	switch status {
	case LoginUsed:
		return "", apperr.Conflict("This login link has already been used")
	case LoginExpired:
		return "", apperr.Conflict("This login link has expired")
	}
	email, err := s.db.ApproveMagicToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("approve login link: %w", err)
	}
	return email, nil
}

// CheckMagicLink reports a token's state. The first poll after approval
// consumes the token and signs the user in; admin emails from the
// configuration are promoted on the way.
func (s *Service) CheckMagicLink(ctx context.Context, token string) (*LoginStatus, error) {
	status, email, err := s.db.CheckMagicTokenStatus(ctx, token)
	if err != nil {
		return nil, apperr.NotFound("Login link")
	}
	if status != LoginApproved {
		return &LoginStatus{Status: status}, nil
	}

	out := &LoginStatus{Status: LoginApproved}
	err = s.db.Tx(ctx, func(q *db.Queries) error {
		if err := q.MarkMagicTokenUsed(ctx, token); err != nil {
			return err
		}
		user, err := q.GetOrCreateUser(ctx, email)
		if err != nil {
			return err
		}
		if s.isAdminEmail(user.Email) && user.Role != db.RoleAdmin {
			if err := q.SetUserRole(ctx, user.ID, db.RoleAdmin); err != nil {
				return err
			}
			user.Role = db.RoleAdmin
		}
		out.User = user
		out.Session, err = q.CreateSession(ctx, user.ID)
		return err
	})
	if errors.Is(err, db.ErrConflict) {
		return &LoginStatus{Status: LoginUsed}, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Logout(ctx context.Context, token string) {
	if token != "" {
		s.db.DeleteSession(ctx, token)
	}
}

// Me returns the caller's identity.
func (s *Service) Me(ctx context.Context) (*auth.Session, error) {
	return auth.RequireAuth(ctx)
}

func (s *Service) isAdminEmail(email string) bool {
	for _, e := range s.cfg.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

// SyncAdmins gives every configured admin email an admin account. It runs
// at start-up and from the CLI, outside any request.
func (s *Service) SyncAdmins(ctx context.Context) (int, error) {
	n := 0
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		for _, email := range s.cfg.AdminEmails {
			email = strings.TrimSpace(email)
			if email == "" {
				continue
			}
			u, err := q.GetOrCreateUser(ctx, email)
			if err != nil {
				return err
			}
			if u.Role == db.RoleAdmin {
				continue
			}
			if err := q.SetUserRole(ctx, u.ID, db.RoleAdmin); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *Service) ListUsers(ctx context.Context) ([]db.User, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	return s.db.ListUsers(ctx)
}

// Team lists users with their open task counts.
func (s *Service) Team(ctx context.Context) ([]db.TeamMember, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	return s.db.TeamWorkload(ctx)
}

// SetUserRole changes another user's role. Admins cannot demote
// themselves.
func (s *Service) SetUserRole(ctx context.Context, userID string, role db.Role) error {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	if !role.IsValid() {
		return apperr.Invalid("role", "must be admin or member")
	}
	if userID == sess.UserID && role != db.RoleAdmin {
		return apperr.Invalid("role", "you cannot remove your own admin role")
	}
	return notFound(s.db.SetUserRole(ctx, userID, role), "User")
}

func (s *Service) UpdateProfile(ctx context.Context, name string) (*db.User, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name", "must not be empty")
	}
	if err := s.db.SetUserName(ctx, sess.UserID, name); err != nil {
		return nil, notFound(err, "User")
	}
	u, err := s.db.GetUserByID(ctx, sess.UserID)
	return u, notFound(err, "User")
}
