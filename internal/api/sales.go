package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/service"
)

// Pipeline stages

func (h *Handler) stageRoutes(r chi.Router) {
	r.Get("/", h.listStages)
	r.Post("/", h.createStage)
	r.Post("/seed", h.seedStages)
	r.Put("/order", h.reorderStages)
	r.Put("/{id}", h.updateStage)
	r.Delete("/{id}", h.deleteStage)
}

func stagesOrEmpty(stages []db.PipelineStage) []db.PipelineStage {
	if stages == nil {
		return []db.PipelineStage{}
	}
	return stages
}

func (h *Handler) listStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.svc.ListStages(r.Context())
	if err != nil {
		h.fail(w, r, "list stages", err)
		return
	}
	ok(w, stagesOrEmpty(stages))
}

func (h *Handler) createStage(w http.ResponseWriter, r *http.Request) {
	var in service.StageInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create stage", err)
		return
	}
	st, err := h.svc.CreateStage(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create stage", err)
		return
	}
	created(w, st)
}

func (h *Handler) seedStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.svc.SeedStages(r.Context())
	if err != nil {
		h.fail(w, r, "seed stages", err)
		return
	}
	ok(w, stagesOrEmpty(stages))
}

func (h *Handler) reorderStages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "reorder stages", err)
		return
	}
	stages, err := h.svc.ReorderStages(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, r, "reorder stages", err)
		return
	}
	ok(w, stagesOrEmpty(stages))
}

func (h *Handler) updateStage(w http.ResponseWriter, r *http.Request) {
	var in service.StageInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "update stage", err)
		return
	}
	st, err := h.svc.UpdateStage(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, "update stage", err)
		return
	}
	ok(w, st)
}

func (h *Handler) deleteStage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteStage(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete stage", err)
		return
	}
	ok(w, nil)
}

// Prospects

func (h *Handler) prospectRoutes(r chi.Router) {
	r.Get("/", h.listProspects)
	r.Post("/", h.createProspect)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getProspect)
		r.Patch("/", h.updateProspect)
		r.Delete("/", h.deleteProspect)
		r.Post("/move", h.moveProspect)
	})
}

func (h *Handler) listProspects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.ListProspects(r.Context(), service.ProspectQuery{
		StageID: q.Get("stageId"),
		OwnerID: q.Get("ownerId"),
		Search:  q.Get("search"),
	})
	if err != nil {
		h.fail(w, r, "list prospects", err)
		return
	}
	if list == nil {
		list = []db.Prospect{}
	}
	ok(w, list)
}

func (h *Handler) createProspect(w http.ResponseWriter, r *http.Request) {
	var in service.ProspectInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create prospect", err)
		return
	}
	p, err := h.svc.CreateProspect(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create prospect", err)
		return
	}
	created(w, p)
}

func (h *Handler) getProspect(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "load prospect", err)
		return
	}
	ok(w, p)
}

func (h *Handler) updateProspect(w http.ResponseWriter, r *http.Request) {
	var u service.ProspectUpdate
	if err := decode(r, &u); err != nil {
		h.fail(w, r, "update prospect", err)
		return
	}
	p, err := h.svc.UpdateProspect(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		h.fail(w, r, "update prospect", err)
		return
	}
	ok(w, p)
}

func (h *Handler) deleteProspect(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProspect(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete prospect", err)
		return
	}
	ok(w, nil)
}

func (h *Handler) moveProspect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StageID string `json:"stageId"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "move prospect", err)
		return
	}
	p, err := h.svc.MoveProspect(r.Context(), chi.URLParam(r, "id"), req.StageID)
	if err != nil {
		h.fail(w, r, "move prospect", err)
		return
	}
	ok(w, p)
}

// Email templates

func (h *Handler) templateRoutes(r chi.Router) {
	r.Get("/", h.listTemplates)
	r.Post("/", h.createTemplate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getTemplate)
		r.Put("/", h.updateTemplate)
		r.Delete("/", h.deleteTemplate)
		r.Post("/preview", h.previewTemplate)
		r.Post("/send", h.sendTemplate)
	})
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListTemplates(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, r, "list templates", err)
		return
	}
	if list == nil {
		list = []db.EmailTemplate{}
	}
	ok(w, list)
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var in service.TemplateInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create template", err)
		return
	}
	t, err := h.svc.CreateTemplate(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create template", err)
		return
	}
	created(w, t)
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "load template", err)
		return
	}
	ok(w, t)
}

func (h *Handler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var in service.TemplateInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "update template", err)
		return
	}
	t, err := h.svc.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, "update template", err)
		return
	}
	ok(w, t)
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete template", err)
		return
	}
	ok(w, nil)
}

type prospectRef struct {
	ProspectID string `json:"prospectId"`
}

func (h *Handler) previewTemplate(w http.ResponseWriter, r *http.Request) {
	var req prospectRef
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "preview email", err)
		return
	}
	msg, err := h.svc.PreviewTemplate(r.Context(), chi.URLParam(r, "id"), req.ProspectID)
	if err != nil {
		h.fail(w, r, "preview email", err)
		return
	}
	ok(w, msg)
}

func (h *Handler) sendTemplate(w http.ResponseWriter, r *http.Request) {
	var req prospectRef
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "send email", err)
		return
	}
	msg, err := h.svc.SendTemplate(r.Context(), chi.URLParam(r, "id"), req.ProspectID)
	if err != nil {
		h.fail(w, r, "send email", err)
		return
	}
	ok(w, msg)
}

// Automations

func (h *Handler) automationRoutes(r chi.Router) {
	r.Get("/", h.listAutomations)
	r.Post("/", h.createAutomation)
	r.Put("/{id}", h.updateAutomation)
	r.Delete("/{id}", h.deleteAutomation)
}

func (h *Handler) listAutomations(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAutomations(r.Context())
	if err != nil {
		h.fail(w, r, "list automations", err)
		return
	}
	if list == nil {
		list = []db.Automation{}
	}
	ok(w, list)
}

func (h *Handler) createAutomation(w http.ResponseWriter, r *http.Request) {
	var in service.AutomationInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create automation", err)
		return
	}
	a, err := h.svc.CreateAutomation(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create automation", err)
		return
	}
	created(w, a)
}

func (h *Handler) updateAutomation(w http.ResponseWriter, r *http.Request) {
	var in service.AutomationInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "update automation", err)
		return
	}
	a, err := h.svc.UpdateAutomation(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, "update automation", err)
		return
	}
	ok(w, a)
}

func (h *Handler) deleteAutomation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAutomation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete automation", err)
		return
	}
	ok(w, nil)
}
