package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/service"
)

func (h *Handler) boardRoutes(r chi.Router) {
	r.Get("/", h.listBoards)
	r.Get("/today", h.todayBoard)
	r.Get("/date/{date}", h.boardByDate)
	r.Get("/{id}/tasks", h.boardTasks)
	r.Post("/{id}/tasks", h.addBoardTask)
	r.Post("/tasks/{taskID}/toggle", h.toggleBoardTask)
}

func (h *Handler) listBoards(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, "list boards", err)
		return
	}
	boards, err := h.svc.ListBoards(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list boards", err)
		return
	}
	if boards == nil {
		boards = []db.DailyBoard{}
	}
	ok(w, boards)
}

func (h *Handler) todayBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.TodayBoard(r.Context())
	if err != nil {
		h.fail(w, r, "load board", err)
		return
	}
	ok(w, b)
}

func (h *Handler) boardByDate(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.BoardByDate(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		h.fail(w, r, "load board", err)
		return
	}
	ok(w, b)
}

func (h *Handler) boardTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.BoardTasks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "list tasks", err)
		return
	}
	ok(w, tasksOrEmpty(tasks))
}

func (h *Handler) addBoardTask(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create task", err)
		return
	}
	t, err := h.svc.AddBoardTask(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, "create task", err)
		return
	}
	created(w, t)
}

func (h *Handler) toggleBoardTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.ToggleBoardTaskDone(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.fail(w, r, "update task", err)
		return
	}
	ok(w, t)
}
