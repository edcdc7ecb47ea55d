// Package api is the action layer: JSON entry points under /api, each
// wrapping one workflow call and translating its error into the result
// envelope.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lankyjo/coast/internal/ai"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/service"
)

type Handler struct {
	svc    *service.Service
	ai     *ai.Assistant
	logger *slog.Logger
}

func NewHandler(svc *service.Service, assistant *ai.Assistant, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, ai: assistant, logger: logger}
}

// Router mounts every route behind the session middleware.
func (h *Handler) Router(sessions auth.SessionStore) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(auth.Middleware(sessions))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"status": "ok"})
	})

	// Pages opened from emails.
	r.Get("/auth/verify", h.verifyPage)
	r.Post("/auth/verify", h.verifyApprove)
	r.Get("/invite/accept", h.invitePage)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", h.authRoutes)
		r.Route("/users", h.userRoutes)
		r.Get("/team", h.team)
		r.Route("/invitations", h.invitationRoutes)
		r.Route("/projects", h.projectRoutes)
		r.Route("/tasks", h.taskRoutes)
		r.Route("/boards", h.boardRoutes)
		r.Route("/time", h.timeRoutes)
		r.Route("/notes", h.noteRoutes)
		r.Route("/notifications", h.notificationRoutes)
		r.Route("/activities", h.activityRoutes)
		r.Route("/custom-boards", h.customBoardRoutes)
		r.Route("/pipeline/stages", h.stageRoutes)
		r.Route("/prospects", h.prospectRoutes)
		r.Route("/templates", h.templateRoutes)
		r.Route("/automations", h.automationRoutes)
		r.Route("/ai", h.aiRoutes)
	})
	return r
}
