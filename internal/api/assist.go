package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lankyjo/coast/internal/db"
)

func (h *Handler) aiRoutes(r chi.Router) {
	r.Post("/draft-task", h.draftTask)
	r.Post("/subtasks", h.suggestSubtasks)
	r.Post("/suggest-assignee", h.suggestAssignee)
	r.Post("/suggest-deadline", h.suggestDeadline)
	r.Get("/daily-summary", h.dailySummary)
	r.Get("/end-of-day", h.endOfDay)
}

type taskBrief struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    db.Priority `json:"priority"`
}

func (h *Handler) draftTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goal    string `json:"goal"`
		Project string `json:"project"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "draft task", err)
		return
	}
	draft, err := h.ai.DraftTask(r.Context(), req.Goal, req.Project)
	if err != nil {
		h.fail(w, r, "draft task", err)
		return
	}
	ok(w, draft)
}

func (h *Handler) suggestSubtasks(w http.ResponseWriter, r *http.Request) {
	var req taskBrief
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "suggest subtasks", err)
		return
	}
	subtasks, err := h.ai.Subtasks(r.Context(), req.Title, req.Description)
	if err != nil {
		h.fail(w, r, "suggest subtasks", err)
		return
	}
	ok(w, map[string][]string{"subtasks": subtasks})
}

func (h *Handler) suggestAssignee(w http.ResponseWriter, r *http.Request) {
	var req taskBrief
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "suggest assignee", err)
		return
	}
	s, err := h.ai.SuggestAssignee(r.Context(), req.Title, req.Description)
	if err != nil {
		h.fail(w, r, "suggest assignee", err)
		return
	}
	ok(w, s)
}

func (h *Handler) suggestDeadline(w http.ResponseWriter, r *http.Request) {
	var req taskBrief
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "suggest deadline", err)
		return
	}
	s, err := h.ai.SuggestDeadline(r.Context(), req.Title, req.Description, req.Priority)
	if err != nil {
		h.fail(w, r, "suggest deadline", err)
		return
	}
	ok(w, s)
}

// dailySummary summarises the given date, today by default.
func (h *Handler) dailySummary(w http.ResponseWriter, r *http.Request) {
	day, err := queryDay(r, "date")
	if err != nil {
		h.fail(w, r, "summarise day", err)
		return
	}
	if day.IsZero() {
		day = h.ai.Now()
	}
	s, err := h.ai.DailySummary(r.Context(), day)
	if err != nil {
		h.fail(w, r, "summarise day", err)
		return
	}
	ok(w, s)
}

func (h *Handler) endOfDay(w http.ResponseWriter, r *http.Request) {
	s, err := h.ai.EndOfDaySummary(r.Context())
	if err != nil {
		h.fail(w, r, "summarise day", err)
		return
	}
	ok(w, s)
}
