package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/service"
)

func (h *Handler) timeRoutes(r chi.Router) {
	r.Get("/", h.myTimeLogs)
	r.Get("/active", h.activeTimer)
	r.Get("/totals", h.dailyTotals)
	r.Post("/start", h.startTimer)
	r.Post("/manual", h.logManualTime)
	r.Post("/{id}/stop", h.stopTimer)
	r.Delete("/{id}", h.deleteTimeLog)
}

func (h *Handler) startTimer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID    string `json:"taskId"`
		ProjectID string `json:"projectId"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "start timer", err)
		return
	}
	l, err := h.svc.StartTimeEntry(r.Context(), req.TaskID, req.ProjectID)
	if err != nil {
		h.fail(w, r, "start timer", err)
		return
	}
	created(w, l)
}

func (h *Handler) stopTimer(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.StopTimeEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "stop timer", err)
		return
	}
	ok(w, l)
}

func (h *Handler) logManualTime(w http.ResponseWriter, r *http.Request) {
	var in service.ManualTimeInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "log time", err)
		return
	}
	l, err := h.svc.LogManualTime(r.Context(), in)
	if err != nil {
		h.fail(w, r, "log time", err)
		return
	}
	created(w, l)
}

// activeTimer returns the caller's open entry, or null.
func (h *Handler) activeTimer(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.ActiveTimer(r.Context())
	if err != nil {
		h.fail(w, r, "load timer", err)
		return
	}
	ok(w, l)
}

func (h *Handler) myTimeLogs(w http.ResponseWriter, r *http.Request) {
	from, err := queryDay(r, "from")
	if err != nil {
		h.fail(w, r, "list time entries", err)
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		h.fail(w, r, "list time entries", err)
		return
	}
	logs, err := h.svc.MyTimeLogs(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, "list time entries", err)
		return
	}
	if logs == nil {
		logs = []db.TimeLog{}
	}
	ok(w, logs)
}

func (h *Handler) deleteTimeLog(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTimeLog(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete time entry", err)
		return
	}
	ok(w, nil)
}

func (h *Handler) dailyTotals(w http.ResponseWriter, r *http.Request) {
	from, err := queryDay(r, "from")
	if err != nil {
		h.fail(w, r, "load time totals", err)
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		h.fail(w, r, "load time totals", err)
		return
	}
	totals, err := h.svc.DailyTotals(r.Context(), r.URL.Query().Get("userId"), from, to)
	if err != nil {
		h.fail(w, r, "load time totals", err)
		return
	}
	if totals == nil {
		totals = []db.DailyTotal{}
	}
	ok(w, totals)
}
