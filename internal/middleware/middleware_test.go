package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/scienceprep/exam-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTokens map[string]*service.Claims

func (f fakeTokens) ValidateToken(tokenStr string) (*service.Claims, error) {
	claims, ok := f[tokenStr]
	if !ok {
		return nil, errors.New("bad token")
	}
	return claims, nil
}

var testTokens = fakeTokens{
	"student-token": {TokenType: service.TokenTypeStudent, Name: "Mona", Phone: "01012345678"},
	"admin-token":   {TokenType: service.TokenTypeAdmin},
}

func serve(handler gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/", handler, func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, string(claims.TokenType))
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireJWT(t *testing.T) {
	tests := []struct {
		name     string
		handler  gin.HandlerFunc
		header   string
		query    string
		wantCode int
		wantBody string
	}{
		{"student bearer", RequireStudentJWT(testTokens), "Bearer student-token", "", http.StatusOK, "student"},
		{"student lowercase scheme", RequireStudentJWT(testTokens), "bearer student-token", "", http.StatusOK, "student"},
		{"student missing", RequireStudentJWT(testTokens), "", "", http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"student invalid", RequireStudentJWT(testTokens), "Bearer nope", "", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"student with admin token", RequireStudentJWT(testTokens), "Bearer admin-token", "", http.StatusForbidden, "STUDENT_ACCESS_ONLY"},
		{"admin bearer", RequireAdminJWT(testTokens), "Bearer admin-token", "", http.StatusOK, "admin"},
		{"admin query fallback", RequireAdminJWT(testTokens), "", "admin-token", http.StatusOK, "admin"},
		{"admin with student token", RequireAdminJWT(testTokens), "Bearer student-token", "", http.StatusForbidden, "ADMIN_ACCESS_ONLY"},
		{"ws query", RequireStudentWSAuth(testTokens), "", "student-token", http.StatusOK, "student"},
		{"ws ignores header", RequireStudentWSAuth(testTokens), "Bearer student-token", "", http.StatusUnauthorized, "TOKEN_REQUIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := serve(tt.handler, req)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRateLimiterAllow(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request within the interval should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own bucket")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("bucket should refill after one interval")
	}

	now = now.Add(5 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	left := len(rl.visitors)
	rl.mu.Unlock()
	if left != 0 {
		t.Errorf("visitors after cleanup = %d, want 0", left)
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") != "60" {
			t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
		}
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [204 429]", codes)
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("photosynthesis ", 200)

	tests := []struct {
		name           string
		body           string
		acceptEncoding string
		wantEncoded    bool
	}{
		{"large body compressed", large, "gzip, br", true},
		{"small body plain", "ok", "br", false},
		{"client without brotli", large, "gzip", false},
		{"quality parameter", large, "br;q=1.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(BrotliWithConfig(BrotliConfig{MinLength: 64}))
			r.GET("/", func(c *gin.Context) {
				// Two writes, the second after the threshold is crossed.
				half := len(tt.body) / 2
				c.Writer.WriteString(tt.body[:half])
				c.Writer.WriteString(tt.body[half:])
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			encoded := w.Header().Get("Content-Encoding") == "br"
			if encoded != tt.wantEncoded {
				t.Fatalf("Content-Encoding br = %v, want %v", encoded, tt.wantEncoded)
			}

			got := w.Body.Bytes()
			if encoded {
				var err error
				got, err = io.ReadAll(brotli.NewReader(bytes.NewReader(got)))
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
			}
			if string(got) != tt.body {
				t.Errorf("body length = %d, want %d", len(got), len(tt.body))
			}
		})
	}
}

func TestBrotliSkipsEventStream(t *testing.T) {
	r := gin.New()
	r.Use(Brotli())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, strings.Repeat("x", 4096)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Accept-Encoding", "br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Errorf("Content-Encoding = %q, want none for event streams", enc)
	}
}

func TestCacheHeaders(t *testing.T) {
	tests := []struct {
		name    string
		handler gin.HandlerFunc
		want    string
	}{
		{"private max-age", CacheControl(30), "private, max-age=30"},
		{"no-store", NoStore(), "no-store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.handler, httptest.NewRequest(http.MethodGet, "/", nil))
			if got := w.Header().Get("Cache-Control"); got != tt.want {
				t.Errorf("Cache-Control = %q, want %q", got, tt.want)
			}
		})
	}
}
