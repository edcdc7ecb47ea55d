package api

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/service"
)

func (h *Handler) authRoutes(r chi.Router) {
	r.Post("/magic-link", h.requestMagicLink)
	r.Get("/check-status", h.checkStatus)
	r.Post("/logout", h.logout)
	r.Get("/me", h.me)
	r.Post("/invitations/accept", h.acceptInvitation)
}

func (h *Handler) requestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req service.MagicLinkInput
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "send login link", err)
		return
	}
	token, err := h.svc.RequestMagicLink(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, "send login link", err)
		return
	}
	ok(w, map[string]string{"token": token, "status": service.LoginPending})
}

func (h *Handler) checkStatus(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.fail(w, r, "check login", apperr.Invalid("token", "required"))
		return
	}
	st, err := h.svc.CheckMagicLink(r.Context(), token)
	if err != nil {
		h.fail(w, r, "check login", err)
		return
	}
	if st.Session != "" {
		auth.SetSessionCookie(w, st.Session)
	}
	ok(w, st)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), auth.Token(r))
	auth.ClearSessionCookie(w)
	ok(w, map[string]string{"status": "ok"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Me(r.Context())
	if err != nil {
		h.fail(w, r, "load session", err)
		return
	}
	ok(w, sess)
}

func (h *Handler) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "accept invitation", err)
		return
	}
	user, session, err := h.svc.AcceptInvitation(r.Context(), req.Token)
	if err != nil {
		h.fail(w, r, "accept invitation", err)
		return
	}
	auth.SetSessionCookie(w, session)
	ok(w, user)
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.Title}} - Coast</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;background:#0f1117;color:#e2e8f0;display:flex;align-items:center;justify-content:center;min-height:100vh}
.card{background:#1a1d27;border:1px solid #2a2d3e;border-radius:16px;padding:40px;max-width:400px;width:90%;text-align:center}
h1{font-size:20px;margin-bottom:8px}
p{color:#94a3b8;font-size:14px;margin-bottom:24px}
.btn{display:inline-block;background:#3b82f6;color:#fff;border:none;border-radius:10px;padding:12px 32px;font-size:15px;cursor:pointer}
.btn:hover{background:#2563eb}
</style></head><body>
<div class="card">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Token}}<form method="POST" action="/auth/verify">
<input type="hidden" name="token" value="{{.Token}}">
<button type="submit" class="btn">Approve session</button>
</form>{{end}}
</div></body></html>`))

type pageData struct {
	Title   string
	Message string
	Token   string
}

func (h *Handler) render(w http.ResponseWriter, status int, d pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, d); err != nil {
		h.logger.Error("error rendering page", "err", err)
	}
}

// pageError renders a failed page action. Application errors show their
// message; anything else is logged.
func (h *Handler) pageError(w http.ResponseWriter, title string, err error) {
	if e, ok := apperr.As(err); ok {
		status, found := statusByKind[e.Kind]
		if !found {
			status = http.StatusBadRequest
		}
		h.render(w, status, pageData{Title: title, Message: e.Message})
		return
	}
	h.logger.Error("error handling page", "title", title, "err", err)
	h.render(w, http.StatusInternalServerError, pageData{Title: title, Message: "Something went wrong. Please try again."})
}

func (h *Handler) verifyPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.render(w, http.StatusBadRequest, pageData{Title: "Invalid link", Message: "This login link is missing its token."})
		return
	}
	h.render(w, http.StatusOK, pageData{
		Title:   "Approve sign-in",
		Message: "Approve to finish signing in on the device that asked for this link.",
		Token:   token,
	})
}

func (h *Handler) verifyApprove(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("token")
	if token == "" {
		h.render(w, http.StatusBadRequest, pageData{Title: "Invalid link", Message: "This login link is missing its token."})
		return
	}
	email, err := h.svc.ApproveMagicLink(r.Context(), token)
	if err != nil {
		h.pageError(w, "Sign-in not approved", err)
		return
	}
	h.render(w, http.StatusOK, pageData{
		Title:   "Session approved",
		Message: "Signed in as " + email + ". You can close this tab now.",
	})
}

func (h *Handler) invitePage(w http.ResponseWriter, r *http.Request) {
	_, session, err := h.svc.AcceptInvitation(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.pageError(w, "Invitation not accepted", err)
		return
	}
	auth.SetSessionCookie(w, session)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
