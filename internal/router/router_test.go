package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/finflow-api/config"
	"github.com/oksasatya/finflow-api/internal/container"
	"github.com/oksasatya/finflow-api/internal/infrastructure/memory"
	"github.com/oksasatya/finflow-api/internal/interface/middleware"
	"github.com/oksasatya/finflow-api/pkg/helpers"
	"github.com/oksasatya/finflow-api/pkg/response"
	"github.com/oksasatya/finflow-api/pkg/validation"
)

const prefix = "/api/v1"

func newTestContainer(t *testing.T) *container.Container {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	cfg := &config.Config{
		AppName:            "finflow-api",
		Env:                "test",
		APIPrefix:          prefix,
		StorageDriver:      "memory",
		CORSAllowedOrigins: "*",
		RateLimitAuth:      100,
		RateLimitSearch:    100,
		ProfileCacheTTL:    time.Minute,
		CompanyName:        "FinFlow",
		MetricsEnabled:     true,
	}
	jwtm, err := helpers.NewJWTManager("test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)
	return &container.Container{
		Config:  cfg,
		Logger:  helpers.NewDiscardLogger(),
		Store:   memory.NewUserStore(),
		JWT:     jwtm,
		Hasher:  helpers.NewPasswordHasher(bcrypt.MinCost),
		Metrics: middleware.NewMetrics("finflow"),
	}
}

func newTestServer(t *testing.T) http.Handler {
	return NewEngine(newTestContainer(t))
}

func do(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

var alice = map[string]any{
	"email":      "a@x.com",
	"first_name": "A",
	"last_name":  "B",
	"password":   "longenough1",
}

func registerAndLogin(t *testing.T, h http.Handler, email string) (string, string) {
	t.Helper()
	body := map[string]any{"email": email, "first_name": "A", "last_name": "B", "password": "longenough1"}
	w := do(t, h, http.MethodPost, prefix+"/users/register", body, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = do(t, h, http.MethodPost, prefix+"/users/login", map[string]any{"email": email, "password": "longenough1"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[map[string]any](t, w)
	return "Bearer " + res["access_token"].(string), res["user_id"].(string)
}

func TestRegister(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodPost, prefix+"/users/register", alice, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	u := decode[map[string]any](t, w)
	assert.Equal(t, "a@x.com", u["email"])
	assert.Equal(t, true, u["is_active"])
	assert.Equal(t, false, u["is_verified"])
	_, err := uuid.Parse(u["user_id"].(string))
	assert.NoError(t, err)
	assert.NotContains(t, u, "password")
	assert.NotContains(t, u, "password_hash")

	w = do(t, h, http.MethodPost, prefix+"/users/register", alice, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User with email a@x.com already exists", decode[response.ErrorBody](t, w).Detail)
}

func TestRegisterValidation(t *testing.T) {
	h := newTestServer(t)
	cases := map[string]struct {
		body  any
		field string
	}{
		"short password": {map[string]any{"email": "a@x.com", "first_name": "A", "last_name": "B", "password": "short"}, "password"},
		"bad email":      {map[string]any{"email": "nope", "first_name": "A", "last_name": "B", "password": "longenough1"}, "email"},
		"missing name":   {map[string]any{"email": "a@x.com", "last_name": "B", "password": "longenough1"}, "first_name"},
		"too long pass":  {map[string]any{"email": "a@x.com", "first_name": "A", "last_name": "B", "password": string(bytes.Repeat([]byte("x"), 73))}, "password"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, prefix+"/users/register", tc.body, "")
			require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			body := decode[response.ErrorBody](t, w)
			assert.Equal(t, "validation error", body.Detail)
			assert.Contains(t, body.Errors, tc.field)
		})
	}

	w := do(t, h, http.MethodPost, prefix+"/users/register", "{not json", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLogin(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, prefix+"/users/register", alice, "").Code)

	w := do(t, h, http.MethodPost, prefix+"/users/login", map[string]any{"email": "a@x.com", "password": "longenough1"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[map[string]any](t, w)
	assert.Equal(t, "bearer", res["token_type"])
	assert.NotEmpty(t, res["access_token"])
	assert.Equal(t, "a@x.com", res["email"])

	w = do(t, h, http.MethodPost, prefix+"/users/login", map[string]any{"email": "a@x.com", "password": "wrongpass1"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Invalid email or password", decode[response.ErrorBody](t, w).Detail)

	w = do(t, h, http.MethodPost, prefix+"/users/login", map[string]any{"email": "ghost@x.com", "password": "longenough1"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decode[response.ErrorBody](t, w).Detail)
}

func TestMeRequiresAuthentication(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, prefix+"/users/me", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authenticated", decode[response.ErrorBody](t, w).Detail)

	w = do(t, h, http.MethodGet, prefix+"/users/me", nil, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	token, id := registerAndLogin(t, h, "a@x.com")
	w = do(t, h, http.MethodGet, prefix+"/users/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode[map[string]any](t, w)["user_id"])
}

func TestTokenForMissingUser(t *testing.T) {
	c := newTestContainer(t)
	h := NewEngine(c)
	tok, _, err := c.JWT.GenerateAccessToken(uuid.NewString())
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, prefix+"/users/me", nil, "Bearer "+tok)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode[response.ErrorBody](t, w).Detail)
}

func TestUpdateAndDeactivate(t *testing.T) {
	h := newTestServer(t)
	token, _ := registerAndLogin(t, h, "a@x.com")

	w := do(t, h, http.MethodPatch, prefix+"/users/me", map[string]any{"first_name": "Ada"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	u := decode[map[string]any](t, w)
	assert.Equal(t, "Ada", u["first_name"])
	assert.Equal(t, "B", u["last_name"])

	w = do(t, h, http.MethodPatch, prefix+"/users/me", map[string]any{"first_name": ""}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, http.MethodPost, prefix+"/users/me/deactivate", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["is_active"])

	w = do(t, h, http.MethodPost, prefix+"/users/login", map[string]any{"email": "a@x.com", "password": "longenough1"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListAndGetUsers(t *testing.T) {
	h := newTestServer(t)
	token, id := registerAndLogin(t, h, "a@x.com")
	registerAndLogin(t, h, "b@x.com")

	w := do(t, h, http.MethodGet, prefix+"/users?offset=0&limit=1", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[map[string]any](t, w)
	assert.Len(t, page["items"], 1)
	assert.EqualValues(t, 1, page["limit"])

	w = do(t, h, http.MethodGet, prefix+"/users?limit=1000", nil, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, http.MethodGet, prefix+"/users/"+id, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", decode[map[string]any](t, w)["email"])

	w = do(t, h, http.MethodGet, prefix+"/users/not-a-uuid", nil, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	missing := uuid.NewString()
	w = do(t, h, http.MethodGet, prefix+"/users/"+missing, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User with id "+missing+" not found", decode[response.ErrorBody](t, w).Detail)
}

func TestSearchWithoutIndex(t *testing.T) {
	h := newTestServer(t)
	token, _ := registerAndLogin(t, h, "a@x.com")

	w := do(t, h, http.MethodGet, prefix+"/users/search?q=a", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[]}`, w.Body.String())

	w = do(t, h, http.MethodGet, prefix+"/users/search", nil, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAuthRateLimit(t *testing.T) {
	c := newTestContainer(t)
	mr := miniredis.RunT(t)
	c.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Redis.Close() })
	c.Config.RateLimitAuth = 2
	h := NewEngine(c)

	creds := map[string]any{"email": "a@x.com", "password": "longenough1"}
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, prefix+"/users/login", creds, "").Code)
	}
	w := do(t, h, http.MethodPost, prefix+"/users/login", creds, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	w = do(t, h, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	do(t, h, http.MethodPost, prefix+"/users/login", map[string]any{"email": "a@x.com", "password": "longenough1"}, "")
	w = do(t, h, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "finflow_http_requests_total")
	assert.Contains(t, w.Body.String(), `finflow_auth_events_total{event="login",outcome="invalid_credentials"} 1`)
}
