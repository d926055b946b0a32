package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maplocate/api/internal/apperror"
	"maplocate/api/internal/config"
	"maplocate/api/internal/models"
	"maplocate/api/internal/permissions"
	"maplocate/api/internal/policy"
	"maplocate/api/internal/session"
)

type staticStore struct {
	superusers map[int64]bool
	perms      map[int64][][]string
}

func (s staticStore) IsSuperuser(_ context.Context, id int64) (bool, error) {
	return s.superusers[id], nil
}

func (s staticStore) PermissionSets(_ context.Context, id int64) ([][]string, error) {
	return s.perms[id], nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router   *gin.Engine
	sessions *session.Manager
	mr       *miniredis.Miniredis
	logs     *bytes.Buffer
}

func newEnv(t *testing.T) testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var logs bytes.Buffer
	log := zerolog.New(&logs)
	sessions := session.NewManager(client, config.SecurityConfig{}, log)
	store := staticStore{
		superusers: map[int64]bool{1: true},
		perms:      map[int64][][]string{2: {{"users_view"}}},
	}
	p := policy.New(store, store, sessions)

	r := gin.New()
	r.Use(RequestID(), Logger(log), Recovery(log), Errors(log))
	r.GET("/super", RequireSuperuser(p), func(c *gin.Context) {
		s, _ := CurrentSession(c)
		c.JSON(http.StatusOK, s)
	})
	r.GET("/view", RequirePermission(p, permissions.UsersView), func(c *gin.Context) {
		s, _ := CurrentSession(c)
		c.JSON(http.StatusOK, s)
	})
	r.GET("/boom", func(c *gin.Context) {
		Fail(c, errors.New("database on fire"))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	return testEnv{router: r, sessions: sessions, mr: mr, logs: &logs}
}

func (e testEnv) get(path string, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) apperror.Envelope {
	t.Helper()

	var env apperror.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestAuthTiers(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	root, err := env.sessions.Issue(ctx, models.Session{UID: 1, Username: "root@example.com"})
	require.NoError(t, err)
	viewer, err := env.sessions.Issue(ctx, models.Session{UID: 2, Username: "viewer@example.com"})
	require.NoError(t, err)
	nobody, err := env.sessions.Issue(ctx, models.Session{UID: 3, Username: "nobody@example.com"})
	require.NoError(t, err)

	w := env.get("/super", "Bearer "+root)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid": 1, "username": "root@example.com"}`, w.Body.String())

	w = env.get("/view", root)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.get("/view", viewer)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.get("/super", viewer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, int(apperror.PermissionDenied), decodeEnvelope(t, w).Subcode)

	w = env.get("/view", nobody)
	assert.Equal(t, http.StatusForbidden, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, map[string]any{"permission": "users_view"}, envelope.Error)
	assert.Equal(t, http.StatusForbidden, envelope.HTTPCode)
}

func TestAuthFailures(t *testing.T) {
	env := newEnv(t)

	w := env.get("/view", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int(apperror.NoAccessToken), decodeEnvelope(t, w).Subcode)

	w = env.get("/view", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int(apperror.InvalidAccessToken), decodeEnvelope(t, w).Subcode)

	require.NoError(t, env.mr.Set(session.TokenKey("junk"), `{"uid": "x"}`))
	w = env.get("/view", "junk")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int(apperror.InvalidAccessToken), decodeEnvelope(t, w).Subcode)
	assert.Contains(t, env.logs.String(), "bad data found in session")
	assert.Contains(t, env.logs.String(), `"error_reason":"Invalid Authorization"`)
}

func TestInternalErrors(t *testing.T) {
	env := newEnv(t)

	w := env.get("/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": {}, "error_reason": "Internal server error", "error_code": 500}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "database on fire")
	assert.Contains(t, env.logs.String(), "database on fire")

	w = env.get("/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, env.logs.String(), "panic recovered")
}

func TestRedisDownIsInternal(t *testing.T) {
	env := newEnv(t)
	env.mr.Close()

	w := env.get("/view", "sometoken")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestID(t *testing.T) {
	env := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/view", nil)
	req.Header.Set(requestIDHeader, "trace-123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/view", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", 100))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://admin.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsUseRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/things/:id", "200")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/things/1", "/things/2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(counter))

	unmatched := httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}
