package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/utils"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/whoami", func(c *gin.Context) {
		ctx := c.Request.Context()
		role, _ := utils.GetUserRoleFromContext(ctx)
		userId, _ := utils.GetUserIdFromContext(ctx)
		c.JSON(http.StatusOK, gin.H{"role": role, "user_id": userId})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	token, err := utils.JwtGenerate(42, "accountant")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	cases := []struct {
		name   string
		header string
		want   int
		body   string
	}{
		{name: "no header", header: "", want: http.StatusOK, body: `{"role":"","user_id":0}`},
		{name: "valid bearer", header: "Bearer " + token, want: http.StatusOK, body: `{"role":"accountant","user_id":42}`},
		{name: "missing scheme", header: token, want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
	}
	r := newRouter(AuthMiddleware())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Fatalf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_RejectsForeignSecret(t *testing.T) {
	t.Setenv("API_SECRET", "secret-a")
	token, err := utils.JwtGenerate(1, "admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	t.Setenv("API_SECRET", "secret-b")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newRouter(AuthMiddleware()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionMiddleware_WithoutRedisPassesThrough(t *testing.T) {
	if config.GetRedisDB() != nil {
		t.Skip("redis connected")
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("token", "abc")
	rec := httptest.NewRecorder()
	newRouter(SessionMiddleware()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without redis, got %d", rec.Code)
	}
}
