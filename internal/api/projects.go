package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/service"
)

func (h *Handler) projectRoutes(r chi.Router) {
	r.Get("/", h.listProjects)
	r.Post("/", h.createProject)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getProject)
		r.Patch("/", h.updateProject)
		r.Delete("/", h.deleteProject)
		r.Post("/members", h.addProjectMember)
		r.Delete("/members/{userID}", h.removeProjectMember)
		r.Get("/activities", h.projectActivities)
	})
}

// listProjects returns the visible projects, or the single project with
// the given slug.
func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	if slug := r.URL.Query().Get("slug"); slug != "" {
		p, err := h.svc.GetProjectBySlug(r.Context(), slug)
		if err != nil {
			h.fail(w, r, "load project", err)
			return
		}
		ok(w, p)
		return
	}
	projects, err := h.svc.ListProjects(r.Context())
	if err != nil {
		h.fail(w, r, "list projects", err)
		return
	}
	if projects == nil {
		projects = []db.Project{}
	}
	ok(w, projects)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create project", err)
		return
	}
	p, err := h.svc.CreateProject(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create project", err)
		return
	}
	created(w, p)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "load project", err)
		return
	}
	ok(w, p)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var u service.ProjectUpdate
	if err := decode(r, &u); err != nil {
		h.fail(w, r, "update project", err)
		return
	}
	p, err := h.svc.UpdateProject(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		h.fail(w, r, "update project", err)
		return
	}
	ok(w, p)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete project", err)
		return
	}
	ok(w, nil)
}

func (h *Handler) addProjectMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "add project member", err)
		return
	}
	p, err := h.svc.AddProjectMember(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		h.fail(w, r, "add project member", err)
		return
	}
	ok(w, p)
}

func (h *Handler) removeProjectMember(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.RemoveProjectMember(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, "remove project member", err)
		return
	}
	ok(w, p)
}

func (h *Handler) projectActivities(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, "list activities", err)
		return
	}
	acts, err := h.svc.ProjectActivities(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, r, "list activities", err)
		return
	}
	if acts == nil {
		acts = []db.Activity{}
	}
	ok(w, acts)
}
