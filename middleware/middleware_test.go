package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"advice-moderation-server/models"
	"advice-moderation-server/types"
)

type fakeTokens map[string]string // token -> user id

func (f fakeTokens) ValidateAccessToken(token string) (*types.Claims, error) {
	id, ok := f[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &types.Claims{UserID: id}, nil
}

type fakeUsers map[string]models.User

func (f fakeUsers) GetUser(_ context.Context, id string) (models.User, error) {
	u, ok := f[id]
	if !ok {
		return models.User{}, errors.New("not found")
	}
	return u, nil
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := fakeTokens{"admin-token": "u-admin", "user-token": "u-user", "inactive-token": "u-inactive"}
	users := fakeUsers{
		"u-admin":    {ID: "u-admin", Role: models.RoleAdmin, IsActive: true},
		"u-user":     {ID: "u-user", Role: models.RoleUser, IsActive: true},
		"u-inactive": {ID: "u-inactive", Role: models.RoleAdmin},
	}
	authn := NewAuthenticator(tokens, users)

	r := gin.New()
	r.GET("/me", authn.AuthMiddleware(), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, user.ID)
	})
	r.GET("/admin", authn.AuthMiddleware(), RequireRoles(models.RoleAdmin, models.RoleModerator), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/ws", authn.WebSocketAuthMiddleware(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	r.GET("/no-auth-guard", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func serve(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthRouter()
	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token admin-token", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"inactive user", "Bearer inactive-token", http.StatusUnauthorized},
		{"valid", "Bearer user-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/me", tt.auth)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if tt.status == http.StatusOK && w.Body.String() != "u-user" {
				t.Errorf("expected current user u-user, got %q", w.Body.String())
			}
		})
	}
}

func assertFailureBody(t *testing.T, w *httptest.ResponseRecorder, code string) {
	t.Helper()
	var body struct {
		Success *bool  `json:"success"`
		Code    string `json:"code"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body %q: %v", w.Body.String(), err)
	}
	if body.Success == nil || *body.Success || body.Code != code || body.Error == "" {
		t.Errorf("expected failure body with code %s, got %s", code, w.Body.String())
	}
}

func TestRequireRoles(t *testing.T) {
	r := newAuthRouter()
	if w := serve(r, http.MethodGet, "/admin", "Bearer admin-token"); w.Code != http.StatusOK {
		t.Errorf("expected admin allowed, got %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/admin", "Bearer user-token")
	if w.Code != http.StatusForbidden {
		t.Errorf("expected user forbidden, got %d", w.Code)
	}
	assertFailureBody(t, w, "forbidden")
	assertFailureBody(t, serve(r, http.MethodGet, "/me", ""), "unauthorized")
	if w := serve(r, http.MethodGet, "/no-auth-guard", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 when no role is set, got %d", w.Code)
	}
}

func TestWebSocketAuthMiddleware(t *testing.T) {
	r := newAuthRouter()
	if w := serve(r, http.MethodGet, "/ws", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/ws?token=admin-token", "")
	if w.Code != http.StatusOK || w.Body.String() != "u-admin" {
		t.Errorf("expected u-admin, got %d %q", w.Code, w.Body.String())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter()
	r := gin.New()
	r.Use(rl.RateLimitMiddleware())
	r.POST("/api/v1/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/admin/requests", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		if w := serve(r, http.MethodPost, "/api/v1/auth/login", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w := serve(r, http.MethodPost, "/api/v1/auth/login", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", w.Code)
	}
	assertFailureBody(t, w, "rate_limited")
	// budgets are per route
	if w := serve(r, http.MethodGet, "/api/v1/admin/requests", ""); w.Code != http.StatusOK {
		t.Errorf("expected other route unaffected, got %d", w.Code)
	}
	if rl.Size() != 2 {
		t.Errorf("expected 2 tracked keys, got %d", rl.Size())
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()
	rl.GetLimiterWithConfig("a", 1, 1)
	rl.GetLimiterWithConfig("b", 1, 1)
	rl.mutex.Lock()
	rl.lastSeen["a"] = time.Now().Add(-2 * time.Hour)
	rl.mutex.Unlock()

	if n := rl.Cleanup(time.Hour); n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if rl.Size() != 1 {
		t.Errorf("expected 1 left, got %d", rl.Size())
	}
}

func TestLimitsFor(t *testing.T) {
	tests := []struct {
		method, path string
		burst        int
	}{
		{http.MethodPost, "/api/v1/auth/login", 5},
		{http.MethodPost, "/api/v1/auth/register", 5},
		{http.MethodGet, "/api/v1/ws", 5},
		{http.MethodPost, "/api/v1/admin/requests/bulk", 3},
		{http.MethodGet, "/api/v1/admin/requests", 30},
		{http.MethodPost, "/api/v1/admin/requests/:id/approve", 10},
	}
	for _, tt := range tests {
		if _, burst := limitsFor(tt.method, tt.path); burst != tt.burst {
			t.Errorf("%s %s: expected burst %d, got %d", tt.method, tt.path, tt.burst, burst)
		}
	}
}

func TestInputValidationMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(InputValidationMiddleware())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(contentType, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("application/json", `{}`); code != http.StatusOK {
		t.Errorf("expected json accepted, got %d", code)
	}
	if code := send("text/plain", "hello"); code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415 for text/plain, got %d", code)
	}
	if code := send("", ""); code != http.StatusOK {
		t.Errorf("expected empty body accepted, got %d", code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeadersMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/", "")
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing security headers: %v", w.Header())
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://admin.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unknown origin, got %d", w.Code)
	}
}
