package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/service"
)

func (h *Handler) userRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Put("/me", h.updateProfile)
	r.Put("/{id}/role", h.setUserRole)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, "list users", err)
		return
	}
	if users == nil {
		users = []db.User{}
	}
	ok(w, users)
}

func (h *Handler) team(w http.ResponseWriter, r *http.Request) {
	team, err := h.svc.Team(r.Context())
	if err != nil {
		h.fail(w, r, "load team", err)
		return
	}
	if team == nil {
		team = []db.TeamMember{}
	}
	ok(w, team)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "update profile", err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, "update profile", err)
		return
	}
	ok(w, u)
}

func (h *Handler) setUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role db.Role `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "update role", err)
		return
	}
	if err := h.svc.SetUserRole(r.Context(), chi.URLParam(r, "id"), req.Role); err != nil {
		h.fail(w, r, "update role", err)
		return
	}
	ok(w, map[string]any{"id": chi.URLParam(r, "id"), "role": req.Role})
}

func (h *Handler) invitationRoutes(r chi.Router) {
	r.Get("/", h.listInvitations)
	r.Post("/", h.inviteUser)
	r.Delete("/{id}", h.revokeInvitation)
}

func (h *Handler) listInvitations(w http.ResponseWriter, r *http.Request) {
	invs, err := h.svc.ListInvitations(r.Context())
	if err != nil {
		h.fail(w, r, "list invitations", err)
		return
	}
	if invs == nil {
		invs = []db.Invitation{}
	}
	ok(w, invs)
}

func (h *Handler) inviteUser(w http.ResponseWriter, r *http.Request) {
	var in service.InvitationInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create invitation", err)
		return
	}
	inv, err := h.svc.InviteUser(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create invitation", err)
		return
	}
	created(w, inv)
}

func (h *Handler) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RevokeInvitation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "revoke invitation", err)
		return
	}
	ok(w, nil)
}
