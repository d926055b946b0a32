package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maplocate/api/internal/config"
	"maplocate/api/internal/database/dbtest"
	"maplocate/api/internal/handlers"
	"maplocate/api/internal/policy"
	"maplocate/api/internal/repository"
	"maplocate/api/internal/service"
	"maplocate/api/internal/session"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func (a apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func subcode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	return int(decode(t, w)["error_subcode"].(float64))
}

type env struct {
	api      apiClient
	sessions *session.Manager
	users    *service.UserService
}

func setupEnv(t *testing.T) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool := dbtest.Setup(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.AppConfig{Environment: "test"}
	log := zerolog.Nop()
	sessions := session.NewManager(client, config.SecurityConfig{}, log)
	srv := NewHTTPServer(cfg, log, handlers.NewHandlerSet(log, pool, client, sessions, cfg))

	userRepo := repository.NewUserRepository(pool)
	pol := policy.New(userRepo, repository.NewRoleRepository(pool), sessions)

	return env{
		api:      apiClient{t: t, handler: srv.Handler()},
		sessions: sessions,
		users:    service.NewUserService(userRepo, sessions, pol, log),
	}
}

func (e env) login(t *testing.T, login, password string) string {
	t.Helper()

	w := e.api.do(http.MethodPost, "/auth/login", "", map[string]string{"username": login, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["access_token"].(string)
}

func TestAdminScenario(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	_, err := e.users.Create(ctx, service.CreateUserInput{Login: "root@example.com", Password: "rootpw", IsSuperuser: true})
	require.NoError(t, err)
	root := e.login(t, "root@example.com", "rootpw")

	w := e.api.do(http.MethodPost, "/admin/roles/", root, map[string]any{
		"role_name":   "viewer",
		"permissions": []string{"users_view"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	viewerRole := int64(decode(t, w)["id"].(float64))

	w = e.api.do(http.MethodPost, "/admin/roles/", root, map[string]any{"role_name": "other"})
	require.Equal(t, http.StatusCreated, w.Code)
	otherRole := int64(decode(t, w)["id"].(float64))

	w = e.api.do(http.MethodPost, "/admin/user/", root, map[string]any{"login": "a@b.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	uid := int64(decode(t, w)["id"].(float64))

	w = e.api.do(http.MethodPost, "/admin/user/", root, map[string]any{"login": "a@b.com", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 2, subcode(t, w))

	rolesPath := fmt.Sprintf("/admin/user/%d/roles", uid)
	w = e.api.do(http.MethodPut, rolesPath, root, map[string]any{"role_ids": []int64{viewerRole}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	user := e.login(t, "a@b.com", "pw")

	w = e.api.do(http.MethodGet, "/admin/user/", user, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = e.api.do(http.MethodGet, "/admin/roles/", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 6, subcode(t, w))

	w = e.api.do(http.MethodPut, rolesPath, root, map[string]any{"role_ids": []int64{1, 1, 2}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["error_subcode"])
	assert.Equal(t, map[string]any{"role_ids": "duplicate role ids: [1]"}, body["error"])

	w = e.api.do(http.MethodPut, rolesPath, root, map[string]any{"role_ids": []int64{viewerRole, 999}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"role_ids": "unknown role ids: [999]"}, decode(t, w)["error"])

	w = e.api.do(http.MethodGet, rolesPath, user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	roles := decode(t, w)["roles"].([]any)
	require.Len(t, roles, 1)
	assert.EqualValues(t, viewerRole, roles[0].(map[string]any)["id"])

	w = e.api.do(http.MethodPut, rolesPath, root, map[string]any{"role_ids": []int64{viewerRole, otherRole}})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 1, body["added"])
	assert.EqualValues(t, 0, body["removed"])

	w = e.api.do(http.MethodPut, rolesPath, user, map[string]any{"role_ids": []int64{}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.api.do(http.MethodDelete, fmt.Sprintf("/admin/roles/%d", viewerRole), root, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.api.do(http.MethodPatch, fmt.Sprintf("/admin/user/%d", uid), root, map[string]any{"disabled": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.api.do(http.MethodGet, "/admin/user/", user, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 5, subcode(t, w))

	w = e.api.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "a@b.com", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 7, subcode(t, w))

	w = e.api.do(http.MethodDelete, fmt.Sprintf("/admin/user/%d", uid), root, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.api.do(http.MethodGet, rolesPath, root, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 8, subcode(t, w))
}

func TestRequestErrors(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	_, err := e.users.Create(ctx, service.CreateUserInput{Login: "root@example.com", Password: "rootpw", IsSuperuser: true})
	require.NoError(t, err)
	root := e.login(t, "root@example.com", "rootpw")

	w := e.api.do(http.MethodGet, "/admin/user/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 4, subcode(t, w))

	w = e.api.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "root@example.com", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 3, subcode(t, w))

	w = e.api.do(http.MethodPost, "/auth/login", "", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"username": "field is required"}, decode(t, w)["error"])

	w = e.api.do(http.MethodPost, "/auth/login", "", map[string]string{"login": "root@example.com", "password": "rootpw"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["access_token"])

	w = e.api.do(http.MethodPost, "/admin/user/", root, map[string]any{"login": "not-an-email", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["error_subcode"])
	assert.Equal(t, map[string]any{"login": "must be a valid email"}, body["error"])

	w = e.api.do(http.MethodPut, "/admin/user/abc/roles", root, map[string]any{"role_ids": []int64{}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.api.do(http.MethodGet, "/admin/user/-4", root, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.api.do(http.MethodPost, "/admin/roles/", root, map[string]any{"role_name": "x", "permissions": []string{"fly"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"permissions": "unknown permission: fly"}, decode(t, w)["error"])

	w = e.api.do(http.MethodGet, "/admin/permissions", root, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 7)

	w = e.api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "maplocate_admin_http_requests_total")

	w = e.api.do(http.MethodPost, "/auth/logout", root, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.api.do(http.MethodGet, "/admin/user/", root, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
