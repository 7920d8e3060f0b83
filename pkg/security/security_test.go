package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestOriginAllowed(t *testing.T) {
	check := OriginAllowed([]string{"http://localhost:3000"})
	cases := []struct {
		origin, host string
		want         bool
	}{
		{"", "api.local", true},
		{"http://localhost:3000", "api.local", true},
		{"http://evil.example", "api.local", false},
		{"http://api.local", "api.local", true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tc.host
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := check(r); got != tc.want {
			t.Fatalf("origin=%q host=%q got=%v", tc.origin, tc.host, got)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("allow-origin=%q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRateLimiter_PerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-User") == "1" {
			c.Set("userId", uint(1))
		}
		c.Next()
	})
	r.Use(RateLimiter(2, time.Hour))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	if do("1") != 200 || do("1") != 200 {
		t.Fatalf("burst should pass")
	}
	if code := do("1"); code != http.StatusTooManyRequests {
		t.Fatalf("third request status=%d", code)
	}
	if code := do(""); code != http.StatusOK {
		t.Fatalf("anonymous client has its own bucket, status=%d", code)
	}
}
