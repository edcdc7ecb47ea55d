package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/service"
)

func (h *Handler) taskRoutes(r chi.Router) {
	r.Get("/", h.listTasks)
	r.Post("/", h.createTask)
	r.Get("/mine", h.myTasks)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getTask)
		r.Patch("/", h.updateTask)
		r.Delete("/", h.deleteTask)
		r.Get("/time-logs", h.taskTimeLogs)
		r.Post("/subtasks", h.addSubtask)
		r.Post("/subtasks/{subtaskID}/toggle", h.toggleSubtask)
		r.Delete("/subtasks/{subtaskID}", h.removeSubtask)
	})
}

func tasksOrEmpty(tasks []db.Task) []db.Task {
	if tasks == nil {
		return []db.Task{}
	}
	return tasks
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, "list tasks", err)
		return
	}
	q := r.URL.Query()
	tasks, err := h.svc.ListTasks(r.Context(), service.TaskQuery{
		ProjectID:     q.Get("projectId"),
		AssigneeID:    q.Get("assigneeId"),
		Status:        db.TaskStatus(q.Get("status")),
		DailyBoardID:  q.Get("dailyBoardId"),
		CustomBoardID: q.Get("customBoardId"),
		Limit:         limit,
	})
	if err != nil {
		h.fail(w, r, "list tasks", err)
		return
	}
	ok(w, tasksOrEmpty(tasks))
}

func (h *Handler) myTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.MyTasks(r.Context(), db.TaskStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, "list tasks", err)
		return
	}
	ok(w, tasksOrEmpty(tasks))
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create task", err)
		return
	}
	t, err := h.svc.CreateTask(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create task", err)
		return
	}
	created(w, t)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "load task", err)
		return
	}
	ok(w, t)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	var u service.TaskUpdate
	if err := decode(r, &u); err != nil {
		h.fail(w, r, "update task", err)
		return
	}
	t, err := h.svc.UpdateTask(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		h.fail(w, r, "update task", err)
		return
	}
	ok(w, t)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete task", err)
		return
	}
	ok(w, nil)
}

func (h *Handler) addSubtask(w http.ResponseWriter, r *http.Request) {
	var in service.SubtaskInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "add subtask", err)
		return
	}
	t, err := h.svc.AddSubtask(r.Context(), chi.URLParam(r, "id"), in.Title)
	if err != nil {
		h.fail(w, r, "add subtask", err)
		return
	}
	ok(w, t)
}

func (h *Handler) toggleSubtask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.ToggleSubtask(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "subtaskID"))
	if err != nil {
		h.fail(w, r, "update subtask", err)
		return
	}
	ok(w, t)
}

func (h *Handler) removeSubtask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.RemoveSubtask(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "subtaskID"))
	if err != nil {
		h.fail(w, r, "remove subtask", err)
		return
	}
	ok(w, t)
}

func (h *Handler) taskTimeLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.TaskTimeLogs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "list time entries", err)
		return
	}
	if logs == nil {
		logs = []db.TimeLog{}
	}
	ok(w, logs)
}
