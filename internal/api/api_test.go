package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lankyjo/coast/internal/ai"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/config"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/mail"
	"github.com/lankyjo/coast/internal/service"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

type fakeGenerator struct {
	reply string
	err   error
}

func (g *fakeGenerator) Generate(context.Context, string, ai.Schema) ([]byte, error) {
	if g.err != nil {
		return nil, g.err
	}
	return []byte(g.reply), nil
}

type testServer struct {
	handler http.Handler
	store   *db.DB
	mail    *outbox
	gen     *fakeGenerator

	admin, member *db.User
	adminToken    string
	memberToken   string
	project       *db.Project
}

func setup(t *testing.T) *testServer {
	t.Helper()
	store, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.BaseURL = "http://coast.test"

	s := &testServer{store: store, mail: &outbox{}, gen: &fakeGenerator{}}
	svc := service.New(store, events.NewDispatcher(store, logger), s.mail, cfg, logger)
	s.handler = NewHandler(svc, ai.New(s.gen, svc, logger), logger).Router(store)

	ctx := context.Background()
	s.admin, err = store.CreateUser(ctx, "admin@coast.test", "Ada Admin", db.RoleAdmin)
	require.NoError(t, err)
	s.member, err = store.CreateUser(ctx, "bob@coast.test", "Bob", db.RoleMember)
	require.NoError(t, err)
	s.adminToken, err = store.CreateSession(ctx, s.admin.ID)
	require.NoError(t, err)
	s.memberToken, err = store.CreateSession(ctx, s.member.ID)
	require.NoError(t, err)

	s.project, err = svc.CreateProject(
		auth.WithSession(ctx, &auth.Session{UserID: s.admin.ID, Role: db.RoleAdmin}),
		service.ProjectInput{Name: "Website", MemberIDs: []string{s.member.ID}},
	)
	require.NoError(t, err)
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type result struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   string              `json:"error"`
	Details map[string][]string `json:"details"`
}

func parse(t *testing.T, rec *httptest.ResponseRecorder, status int) result {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var res result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHealthz(t *testing.T) {
	s := setup(t)
	res := parse(t, s.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)
	assert.True(t, res.Success)
}

func TestUnauthenticated(t *testing.T) {
	s := setup(t)

	res := parse(t, s.do(t, http.MethodGet, "/api/projects", "", nil), http.StatusUnauthorized)
	assert.False(t, res.Success)
	assert.Equal(t, "Unauthorized", res.Error)

	res = parse(t, s.do(t, http.MethodGet, "/api/projects", "not-a-session", nil), http.StatusUnauthorized)
	assert.Equal(t, "Unauthorized", res.Error)
}

func TestEmptyListsAreArrays(t *testing.T) {
	s := setup(t)
	res := parse(t, s.do(t, http.MethodGet, "/api/notes", s.memberToken, nil), http.StatusOK)
	assert.True(t, res.Success)
	assert.JSONEq(t, `[]`, string(res.Data))
}

func TestTaskLifecycle(t *testing.T) {
	s := setup(t)

	res := parse(t, s.do(t, http.MethodPost, "/api/tasks", s.adminToken, map[string]any{
		"title":       "Write landing copy",
		"projectId":   s.project.ID,
		"assigneeIds": []string{s.member.ID},
	}), http.StatusCreated)
	var task db.Task
	require.NoError(t, json.Unmarshal(res.Data, &task))
	assert.Equal(t, db.StatusTodo, task.Status)
	assert.Equal(t, int64(1), task.Version)

	path := "/api/tasks/" + task.ID

	res = parse(t, s.do(t, http.MethodPatch, path, s.memberToken, map[string]any{"status": "in_progress"}), http.StatusOK)
	require.NoError(t, json.Unmarshal(res.Data, &task))
	assert.Equal(t, db.StatusInProgress, task.Status)

	res = parse(t, s.do(t, http.MethodPatch, path, s.memberToken, map[string]any{"title": "Mine now"}), http.StatusForbidden)
	assert.Equal(t, "Forbidden: Only admins can change title", res.Error)

	res = parse(t, s.do(t, http.MethodPatch, path, s.adminToken, map[string]any{"status": "done", "version": 1}), http.StatusConflict)
	assert.False(t, res.Success)

	res = parse(t, s.do(t, http.MethodGet, "/api/tasks/mine", s.memberToken, nil), http.StatusOK)
	var mine []db.Task
	require.NoError(t, json.Unmarshal(res.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, task.ID, mine[0].ID)

	parse(t, s.do(t, http.MethodDelete, path, s.memberToken, nil), http.StatusForbidden)
	rec := s.do(t, http.MethodDelete, path, s.adminToken, nil)
	parse(t, rec, http.StatusOK)
	assert.JSONEq(t, `{"success":true,"data":null}`, rec.Body.String())

	res = parse(t, s.do(t, http.MethodGet, path, s.adminToken, nil), http.StatusNotFound)
	assert.Equal(t, "Task not found", res.Error)
}

func TestValidationErrors(t *testing.T) {
	s := setup(t)

	res := parse(t, s.do(t, http.MethodPost, "/api/tasks", s.adminToken, map[string]any{"projectId": s.project.ID}), http.StatusBadRequest)
	assert.Equal(t, "Validation failed", res.Error)
	assert.NotEmpty(t, res.Details)

	res = parse(t, s.do(t, http.MethodPost, "/api/tasks", s.adminToken, "{not json"), http.StatusBadRequest)
	assert.Equal(t, []string{"invalid JSON"}, res.Details["body"])

	res = parse(t, s.do(t, http.MethodGet, "/api/time/totals?from=yesterday", s.memberToken, nil), http.StatusBadRequest)
	assert.Contains(t, res.Details, "from")
}

func TestTimerOverHTTP(t *testing.T) {
	s := setup(t)
	res := parse(t, s.do(t, http.MethodPost, "/api/tasks", s.adminToken, map[string]any{
		"title":       "Fix header",
		"projectId":   s.project.ID,
		"assigneeIds": []string{s.member.ID},
	}), http.StatusCreated)
	var task db.Task
	require.NoError(t, json.Unmarshal(res.Data, &task))

	start := map[string]any{"taskId": task.ID, "projectId": s.project.ID}
	res = parse(t, s.do(t, http.MethodPost, "/api/time/start", s.memberToken, start), http.StatusCreated)
	var entry db.TimeLog
	require.NoError(t, json.Unmarshal(res.Data, &entry))

	parse(t, s.do(t, http.MethodPost, "/api/time/start", s.memberToken, start), http.StatusConflict)

	res = parse(t, s.do(t, http.MethodGet, "/api/time/active", s.memberToken, nil), http.StatusOK)
	assert.Contains(t, string(res.Data), entry.ID)

	parse(t, s.do(t, http.MethodPost, "/api/time/"+entry.ID+"/stop", s.memberToken, nil), http.StatusOK)

	rec := s.do(t, http.MethodGet, "/api/time/active", s.memberToken, nil)
	parse(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `"data":null`)
}

func TestMagicLinkOverHTTP(t *testing.T) {
	s := setup(t)

	res := parse(t, s.do(t, http.MethodPost, "/api/auth/magic-link", "", map[string]string{"email": "New@Coast.test"}), http.StatusOK)
	var pending struct {
		Token  string `json:"token"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &pending))
	assert.Equal(t, service.LoginPending, pending.Status)
	require.Len(t, s.mail.sent, 1)
	assert.Equal(t, "new@coast.test", s.mail.sent[0].To)

	check := "/api/auth/check-status?token=" + url.QueryEscape(pending.Token)
	res = parse(t, s.do(t, http.MethodGet, check, "", nil), http.StatusOK)
	assert.JSONEq(t, `{"status": "pending"}`, string(res.Data))

	rec := s.do(t, http.MethodGet, "/auth/verify?token="+url.QueryEscape(pending.Token), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Approve session")

	form := url.Values{"token": {pending.Token}}
	req := httptest.NewRequest(http.MethodPost, "/auth/verify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signed in as new@coast.test")

	rec = s.do(t, http.MethodGet, check, "", nil)
	res = parse(t, rec, http.StatusOK)
	var status service.LoginStatus
	require.NoError(t, json.Unmarshal(res.Data, &status))
	assert.Equal(t, service.LoginApproved, status.Status)
	require.NotNil(t, status.User)

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	res = parse(t, s.do(t, http.MethodGet, "/api/auth/me", session.Value, nil), http.StatusOK)
	assert.Contains(t, string(res.Data), `"email":"new@coast.test"`)

	res = parse(t, s.do(t, http.MethodGet, check, "", nil), http.StatusOK)
	assert.JSONEq(t, `{"status": "used"}`, string(res.Data))

	parse(t, s.do(t, http.MethodPost, "/api/auth/logout", session.Value, nil), http.StatusOK)
	parse(t, s.do(t, http.MethodGet, "/api/auth/me", session.Value, nil), http.StatusUnauthorized)
}

func TestVerifyPage_UnknownToken(t *testing.T) {
	s := setup(t)
	form := url.Values{"token": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/verify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Login link not found")
}

func TestCheckStatus_RequiresToken(t *testing.T) {
	s := setup(t)
	res := parse(t, s.do(t, http.MethodGet, "/api/auth/check-status", "", nil), http.StatusBadRequest)
	assert.Equal(t, []string{"required"}, res.Details["token"])
}

func TestDownstreamFailureIsGeneric(t *testing.T) {
	s := setup(t)
	s.mail.err = errors.New("smtp: 421 try again later")

	res := parse(t, s.do(t, http.MethodPost, "/api/auth/magic-link", "", map[string]string{"email": "new@coast.test"}), http.StatusInternalServerError)
	assert.Equal(t, "Failed to send login link", res.Error)
	assert.NotContains(t, res.Error, "smtp")
}

func TestInvitationAcceptPage(t *testing.T) {
	s := setup(t)

	parse(t, s.do(t, http.MethodPost, "/api/invitations", s.memberToken, map[string]string{"email": "carol@coast.test", "role": "member"}), http.StatusForbidden)
	res := parse(t, s.do(t, http.MethodPost, "/api/invitations", s.adminToken, map[string]string{"email": "carol@coast.test", "role": "member"}), http.StatusCreated)
	assert.NotContains(t, string(res.Data), "token")

	invs, err := s.store.ListInvitations(context.Background())
	require.NoError(t, err)
	require.Len(t, invs, 1)

	rec := s.do(t, http.MethodGet, "/invite/accept?token="+url.QueryEscape(invs[0].Token), "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	require.NotEmpty(t, rec.Result().Cookies())

	rec = s.do(t, http.MethodGet, "/invite/accept?token="+url.QueryEscape(invs[0].Token), "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invitation is no longer valid")
}

func TestAIRoutes(t *testing.T) {
	s := setup(t)

	s.gen.err = errors.New("connection reset")
	res := parse(t, s.do(t, http.MethodPost, "/api/ai/subtasks", s.memberToken, map[string]string{"title": "Redesign pricing page"}), http.StatusBadGateway)
	assert.Equal(t, "AI service is unavailable", res.Error)

	s.gen.err = nil
	s.gen.reply = `{"subtasks": ["Wireframe", "Build"]}`
	res = parse(t, s.do(t, http.MethodPost, "/api/ai/subtasks", s.memberToken, map[string]string{"title": "Redesign pricing page"}), http.StatusOK)
	assert.JSONEq(t, `{"subtasks": ["Wireframe", "Build"]}`, string(res.Data))

	res = parse(t, s.do(t, http.MethodPost, "/api/ai/suggest-assignee", s.memberToken, map[string]string{"title": "x"}), http.StatusForbidden)
	assert.Equal(t, "Forbidden: Admin access required", res.Error)

	parse(t, s.do(t, http.MethodPost, "/api/ai/subtasks", "", map[string]string{"title": "x"}), http.StatusUnauthorized)
}

func TestProjectBySlug(t *testing.T) {
	s := setup(t)

	res := parse(t, s.do(t, http.MethodGet, "/api/projects?slug=website", s.memberToken, nil), http.StatusOK)
	var p db.Project
	require.NoError(t, json.Unmarshal(res.Data, &p))
	assert.Equal(t, s.project.ID, p.ID)

	parse(t, s.do(t, http.MethodGet, "/api/projects?slug=missing", s.memberToken, nil), http.StatusNotFound)
}
