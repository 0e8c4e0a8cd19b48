package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/tasktracker/api/handler"
	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/internal/infrastructure/monitor"
	"github.com/fastygo/tasktracker/internal/middleware"
	"github.com/fastygo/tasktracker/internal/router"
	"github.com/fastygo/tasktracker/pkg/httpcontext"
	"github.com/fastygo/tasktracker/repository/memory"
	"github.com/fastygo/tasktracker/usecase/assignment"
	authUC "github.com/fastygo/tasktracker/usecase/auth"
	profileUC "github.com/fastygo/tasktracker/usecase/profile"
	"github.com/fastygo/tasktracker/usecase/query"
	taskUC "github.com/fastygo/tasktracker/usecase/task"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  interface{}     `json:"error"`
	Meta   json.RawMessage `json:"meta"`
}

type staticStatus monitor.Status

func (s staticStatus) GetStatus() monitor.Status { return monitor.Status(s) }

type server struct {
	t       *testing.T
	handler fasthttp.RequestHandler
}

func newServer(t *testing.T) *server {
	t.Helper()
	tasks := memory.NewTaskRepository()
	users := memory.NewUserRepository()
	sessions := memory.NewSessionRepository(time.Hour)

	tokens := authUC.NewTokenManager("handler-test", "tasktracker", time.Hour)
	auth := authUC.New(users, sessions, tokens, nil)
	engine := query.NewEngine(tasks, query.WithStatsCache(memory.NewStatsCache(time.Minute)))
	coord := assignment.NewCoordinator(tasks, users, nil, nil)
	adapter := httpcontext.NewAdapter(time.Second)

	r := router.New(router.Handlers{
		Auth:    apiHandler.NewAuthHandler(auth, adapter, nil, 1024),
		Profile: apiHandler.NewProfileHandler(profileUC.New(users, nil), adapter, nil),
		Task:    apiHandler.NewTaskHandler(taskUC.New(tasks, users, coord, engine, nil), adapter, nil),
		Health:  apiHandler.NewHealthHandler(staticStatus{Store: true, Cache: true}, "memory", adapter, nil),
	}, middleware.JWTAuth(auth, time.Second, nil), nil)

	return &server{t: t, handler: r.Handler}
}

func (s *server) do(method, uri, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var rc fasthttp.RequestCtx
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(uri)
	if token != "" {
		rc.Request.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		rc.Request.Header.SetContentType("application/json")
		rc.Request.SetBody(payload)
	}
	return s.serve(&rc)
}

func (s *server) serve(rc *fasthttp.RequestCtx) (int, envelope) {
	s.t.Helper()
	s.handler(rc)
	var env envelope
	if len(rc.Response.Body()) > 0 {
		require.NoError(s.t, json.Unmarshal(rc.Response.Body(), &env))
	}
	return rc.Response.StatusCode(), env
}

func (s *server) signUp(email string) (string, domain.ID) {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{
		"firstName": "Test",
		"lastName":  "User",
		"email":     email,
		"password":  "12345678As",
	})
	require.Equal(s.t, http.StatusCreated, status, env.Error)
	var tok struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &tok))

	_, profile := s.do(http.MethodGet, "/api/v1/users/profile", tok.AccessToken, nil)
	var user domain.User
	require.NoError(s.t, json.Unmarshal(profile.Data, &user))
	return tok.AccessToken, user.ID
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	token, _ := s.signUp("flow@example.com")

	status, env := s.do(http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{
		"firstName": "Dup", "lastName": "User", "email": "FLOW@example.com", "password": "12345678As",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Code)

	status, env = s.do(http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{
		"firstName": "Weak", "lastName": "User", "email": "weak@example.com", "password": "password",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID", env.Code)

	status, env = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "flow@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "wrong credentials", env.Error)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "flow@example.com", "password": "12345678As"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/refresh", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(http.MethodGet, "/api/v1/users/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSignUpMultipartImage(t *testing.T) {
	s := newServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range map[string]string{"firstName": "Pic", "lastName": "User", "email": "pic@example.com", "password": "12345678As"} {
		require.NoError(t, w.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="me.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var rc fasthttp.RequestCtx
	rc.Request.Header.SetMethod(http.MethodPost)
	rc.Request.SetRequestURI("/api/v1/auth/sign-up")
	rc.Request.Header.SetContentType(w.FormDataContentType())
	rc.Request.SetBody(body.Bytes())

	status, env := s.serve(&rc)
	require.Equal(t, http.StatusCreated, status, env.Error)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	status, env := s.do(http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	alice, _ := s.signUp("alice@example.com")
	_, bobID := s.signUp("bob@example.com")

	status, env := s.do(http.MethodPost, "/api/v1/tasks", alice, map[string]string{"title": "Write docs", "description": "all of them"})
	require.Equal(t, http.StatusCreated, status, env.Error)
	created := decode[domain.Task](t, env)
	assert.Equal(t, domain.StatusBacklog, created.Status)
	taskURI := "/api/v1/tasks/" + created.ID.String()

	status, env = s.do(http.MethodPut, "/api/v1/tasks/assign", alice, map[string]string{"taskId": created.ID.String(), "userId": bobID.String()})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = s.do(http.MethodGet, taskURI, alice, nil)
	require.Equal(t, http.StatusOK, status)
	got := decode[domain.Task](t, env)
	require.NotNil(t, got.AssignedTo)
	require.True(t, got.AssignedTo.IsExpanded())
	assert.Equal(t, "bob@example.com", got.AssignedTo.User.Email)

	status, env = s.do(http.MethodGet, "/api/v1/tasks?user="+bobID.String()+"&page=1&size=5", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.Task](t, env), 1)

	status, env = s.do(http.MethodPut, taskURI, alice, map[string]string{"status": "COMPLETED"})
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.NotNil(t, decode[domain.Task](t, env).CompletedAt)

	status, env = s.do(http.MethodPut, taskURI+"/comment", alice, map[string]string{"text": "nice"})
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Len(t, decode[domain.Task](t, env).Comments, 1)

	status, env = s.do(http.MethodDelete, taskURI, alice, nil)
	require.Equal(t, http.StatusNoContent, status, env.Error)

	status, env = s.do(http.MethodGet, taskURI, alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestMonthlyStatsOverHTTP(t *testing.T) {
	s := newServer(t)
	token, me := s.signUp("stats@example.com")

	_, env := s.do(http.MethodPost, "/api/v1/tasks", token, map[string]string{"title": "t", "description": "d"})
	task := decode[domain.Task](t, env)
	s.do(http.MethodPut, "/api/v1/tasks/assign", token, map[string]string{"taskId": task.ID.String(), "userId": me.String()})
	s.do(http.MethodPut, "/api/v1/tasks/"+task.ID.String(), token, map[string]string{"status": "COMPLETED"})

	status, env := s.do(http.MethodGet, "/api/v1/tasks/completed-stats-monthly", token, nil)
	require.Equal(t, http.StatusOK, status)
	stats := decode[[]domain.MonthlyCompleted](t, env)
	require.Len(t, stats, 1)
	assert.EqualValues(t, 1, stats[0].Count)
}

func TestRequestErrorsMapToStatus(t *testing.T) {
	s := newServer(t)
	token, _ := s.signUp("errors@example.com")

	tests := []struct {
		name   string
		method string
		uri    string
		body   interface{}
		status int
		code   string
	}{
		{name: "malformed id", method: http.MethodGet, uri: "/api/v1/tasks/xyz", status: http.StatusBadRequest, code: "INVALID_IDENTIFIER"},
		{name: "missing task", method: http.MethodDelete, uri: "/api/v1/tasks/" + domain.NewID().String(), status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "bad user filter", method: http.MethodGet, uri: "/api/v1/tasks?user=bob", status: http.StatusBadRequest, code: "INVALID_IDENTIFIER"},
		{name: "non numeric page", method: http.MethodGet, uri: "/api/v1/tasks?page=two", status: http.StatusBadRequest, code: "INVALID"},
		{name: "unknown sort", method: http.MethodGet, uri: "/api/v1/tasks?sortBy=password", status: http.StatusBadRequest, code: "INVALID"},
		{name: "missing title", method: http.MethodPost, uri: "/api/v1/tasks", body: map[string]string{"description": "d"}, status: http.StatusBadRequest, code: "INVALID"},
		{name: "assign unknown user", method: http.MethodPut, uri: "/api/v1/tasks/assign", body: map[string]string{"taskId": domain.NewID().String(), "userId": domain.NewID().String()}, status: http.StatusNotFound, code: "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(tt.method, tt.uri, token, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	status, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Status)
}

func TestListReportsPageMeta(t *testing.T) {
	s := newServer(t)
	token, _ := s.signUp("meta@example.com")
	for _, title := range []string{"one", "two", "three"} {
		status, env := s.do(http.MethodPost, "/api/v1/tasks", token, map[string]string{"title": title})
		require.Equal(t, http.StatusCreated, status, env.Error)
	}

	status, env := s.do(http.MethodGet, "/api/v1/tasks?page=2&size=2", token, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Len(t, decode[[]domain.Task](t, env), 1)

	var meta struct {
		Page  int `json:"page"`
		Size  int `json:"size"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Meta, &meta))
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 2, meta.Size)
	assert.Equal(t, 1, meta.Count)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := newServer(t)
	status, env := s.do(http.MethodGet, "/api/v1/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}
