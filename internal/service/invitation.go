package service

import (
	"context"
	"errors"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/mail"
	"github.com/lankyjo/coast/internal/schema"
)

type InvitationInput struct {
	Email string  `json:"email"`
	Role  db.Role `json:"role"`
}

// InviteUser issues an invitation and emails the accept link. A failed
// email is logged; the invitation still stands.
func (s *Service) InviteUser(ctx context.Context, in InvitationInput) (*db.Invitation, error) {
	sess, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(schema.InvitationInput, in); err != nil {
		return nil, err
	}
	inv, err := s.db.CreateInvitation(ctx, in.Email, in.Role, sess.UserID)
	if err != nil {
		return nil, err
	}
	msg := mail.Invitation(inv.Email, s.cfg.BaseURL, inv.Token, actorName(sess))
	if res := mail.Deliver(ctx, s.mail, msg); !res.Success {
		s.logger.Warn("invitation email not sent", "invitation", inv.ID, "err", res.Error)
	}
	return inv, nil
}

func (s *Service) ListInvitations(ctx context.Context) ([]db.Invitation, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.db.ListInvitations(ctx)
}

func (s *Service) RevokeInvitation(ctx context.Context, id string) error {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return err
	}
	err := s.db.SetInvitationStatus(ctx, id, db.InvitationRevoked)
	if errors.Is(err, db.ErrConflict) {
		return apperr.Conflict("Invitation is no longer pending")
	}
	return notFound(err, "Invitation")
}

// AcceptInvitation redeems a pending, unexpired invitation. The invited
// email gets an account with the invited role and a fresh session.
func (s *Service) AcceptInvitation(ctx context.Context, token string) (*db.User, string, error) {
	var user *db.User
	var session string
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		inv, err := q.GetInvitationByToken(ctx, token)
		if err != nil {
			return notFound(err, "Invitation")
		}
		if inv.Status != db.InvitationPending {
			return apperr.Conflict("Invitation is no longer valid")
		}
		if s.Now().After(inv.ExpiresAt) {
			return apperr.Conflict("Invitation has expired")
		}
		if err := q.SetInvitationStatus(ctx, inv.ID, db.InvitationAccepted); err != nil {
			if errors.Is(err, db.ErrConflict) {
				return apperr.Conflict("Invitation is no longer valid")
			}
			return err
		}

		user, err = q.GetOrCreateUser(ctx, inv.Email)
		if err != nil {
			return err
		}
		if user.Role != inv.Role {
			if err := q.SetUserRole(ctx, user.ID, inv.Role); err != nil {
				return err
			}
			user.Role = inv.Role
		}
		session, err = q.CreateSession(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return user, session, nil
}
