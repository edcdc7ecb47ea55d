package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/service"
)

// Notes

func (h *Handler) noteRoutes(r chi.Router) {
	r.Get("/", h.listNotes)
	r.Post("/", h.createNote)
	r.Patch("/{id}", h.updateNote)
	r.Delete("/{id}", h.deleteNote)
}

func (h *Handler) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListNotes(r.Context())
	if err != nil {
		h.fail(w, r, "list notes", err)
		return
	}
	if notes == nil {
		notes = []db.StickyNote{}
	}
	ok(w, notes)
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	var in service.NoteInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create note", err)
		return
	}
	n, err := h.svc.CreateNote(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create note", err)
		return
	}
	created(w, n)
}

func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request) {
	var in service.NoteInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "update note", err)
		return
	}
	n, err := h.svc.UpdateNote(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, "update note", err)
		return
	}
	ok(w, n)
}

func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete note", err)
		return
	}
	ok(w, nil)
}

// Notifications

func (h *Handler) notificationRoutes(r chi.Router) {
	r.Get("/", h.listNotifications)
	r.Get("/unread-count", h.unreadCount)
	r.Post("/read-all", h.markAllRead)
	r.Post("/{id}/read", h.markRead)
	r.Delete("/{id}", h.deleteNotification)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, "list notifications", err)
		return
	}
	list, err := h.svc.ListNotifications(r.Context(), queryBool(r, "unread"), limit)
	if err != nil {
		h.fail(w, r, "list notifications", err)
		return
	}
	if list == nil {
		list = []db.Notification{}
	}
	ok(w, list)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context())
	if err != nil {
		h.fail(w, r, "count notifications", err)
		return
	}
	ok(w, map[string]int{"count": n})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkNotificationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "update notification", err)
		return
	}
	ok(w, nil)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAllNotificationsRead(r.Context())
	if err != nil {
		h.fail(w, r, "update notifications", err)
		return
	}
	ok(w, map[string]int64{"updated": n})
}

func (h *Handler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNotification(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete notification", err)
		return
	}
	ok(w, nil)
}

// Activities

func (h *Handler) activityRoutes(r chi.Router) {
	r.Get("/", h.listActivities)
	r.Delete("/", h.deleteActivities)
}

// listActivities returns the feed, or one day's entries when date is set.
func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	day, err := queryDay(r, "date")
	if err != nil {
		h.fail(w, r, "list activities", err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, "list activities", err)
		return
	}
	var acts []db.Activity
	if day.IsZero() {
		acts, err = h.svc.ListActivities(r.Context(), limit)
	} else {
		acts, err = h.svc.ActivitiesOn(r.Context(), day, r.URL.Query().Get("actorId"))
	}
	if err != nil {
		h.fail(w, r, "list activities", err)
		return
	}
	if acts == nil {
		acts = []db.Activity{}
	}
	ok(w, acts)
}

func (h *Handler) deleteActivities(w http.ResponseWriter, r *http.Request) {
	before, err := queryDay(r, "before")
	if err != nil {
		h.fail(w, r, "delete activities", err)
		return
	}
	if before.IsZero() && !queryBool(r, "all") {
		h.fail(w, r, "delete activities", apperr.Invalid("before", "required unless all=true"))
		return
	}
	n, err := h.svc.DeleteActivities(r.Context(), before)
	if err != nil {
		h.fail(w, r, "delete activities", err)
		return
	}
	ok(w, map[string]int64{"deleted": n})
}

// Custom boards

func (h *Handler) customBoardRoutes(r chi.Router) {
	r.Get("/", h.listCustomBoards)
	r.Post("/", h.createCustomBoard)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getCustomBoard)
		r.Patch("/", h.updateCustomBoard)
		r.Delete("/", h.deleteCustomBoard)
		r.Get("/tasks", h.customBoardTasks)
		r.Post("/tasks", h.addTaskToCustomBoard)
	})
}

func (h *Handler) listCustomBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.svc.ListCustomBoards(r.Context())
	if err != nil {
		h.fail(w, r, "list boards", err)
		return
	}
	if boards == nil {
		boards = []db.CustomBoard{}
	}
	ok(w, boards)
}

func (h *Handler) createCustomBoard(w http.ResponseWriter, r *http.Request) {
	var in service.CustomBoardInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create board", err)
		return
	}
	b, err := h.svc.CreateCustomBoard(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create board", err)
		return
	}
	created(w, b)
}

func (h *Handler) getCustomBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetCustomBoard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "load board", err)
		return
	}
	ok(w, b)
}

func (h *Handler) updateCustomBoard(w http.ResponseWriter, r *http.Request) {
	var u service.CustomBoardUpdate
	if err := decode(r, &u); err != nil {
		h.fail(w, r, "update board", err)
		return
	}
	b, err := h.svc.UpdateCustomBoard(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		h.fail(w, r, "update board", err)
		return
	}
	ok(w, b)
}

func (h *Handler) deleteCustomBoard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCustomBoard(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete board", err)
		return
	}
	ok(w, nil)
}

func (h *Handler) customBoardTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.CustomBoardTasks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "list tasks", err)
		return
	}
	ok(w, tasksOrEmpty(tasks))
}

func (h *Handler) addTaskToCustomBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID string `json:"taskId"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "add task to board", err)
		return
	}
	t, err := h.svc.AddTaskToCustomBoard(r.Context(), chi.URLParam(r, "id"), req.TaskID)
	if err != nil {
		h.fail(w, r, "add task to board", err)
		return
	}
	ok(w, t)
}
