package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{"generated when absent", "", false},
		{"client id reused", "lab-7.run_42", true},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
		{"header injection", "abc\r\nX-Evil: 1", false},
		{"spaces", "two words", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestIDMiddleware())
			var seen string
			r.GET("/", func(c *gin.Context) {
				seen = RequestID(c)
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			if got != seen || got == "" {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if (got == tt.header) != tt.reuse {
				t.Errorf("request id = %q, reuse = %v", got, tt.reuse)
			}
		})
	}
}

func TestEnvelope(t *testing.T) {
	now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("EET", 2*3600)) }
	defer func() { now = time.Now }()

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ok", func(c *gin.Context) {
		SuccessWithPagination(c, http.StatusOK, gin.H{"n": 1}, &Pagination{Page: 2, PerPage: 10, TotalItems: 11, TotalPages: 2})
	})
	r.GET("/fail", func(c *gin.Context) {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{"title": "required"})
	})
	r.GET("/abort", func(c *gin.Context) {
		AbortFail(c, http.StatusForbidden, ErrAdminAccessOnly)
	}, func(c *gin.Context) {
		t.Error("handler after AbortFail ran")
	})

	decode := func(path string) (int, Response, map[string]json.RawMessage) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(HeaderRequestID, "req-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var res Response
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		_ = json.Unmarshal(w.Body.Bytes(), &raw)
		return w.Code, res, raw
	}

	code, res, raw := decode("/ok")
	if code != http.StatusOK || res.Pagination == nil || res.Pagination.TotalPages != 2 {
		t.Errorf("ok: %d %+v", code, res.Pagination)
	}
	if _, present := raw["error"]; present {
		t.Error("success envelope carries an error key")
	}
	if res.Metadata.RequestID != "req-1" || res.Metadata.Timestamp != "2026-03-01T07:30:00Z" {
		t.Errorf("metadata = %+v", res.Metadata)
	}

	code, res, raw = decode("/fail")
	if code != http.StatusBadRequest || res.Error == nil || res.Error.Code != ErrValidation {
		t.Fatalf("fail: %d %+v", code, res.Error)
	}
	if res.Error.Fields["title"] != "required" || res.Error.Message != GetMessage(ErrValidation) {
		t.Errorf("error body = %+v", res.Error)
	}
	if string(raw["data"]) != "null" {
		t.Errorf("data = %s, want null", raw["data"])
	}

	code, res, _ = decode("/abort")
	if code != http.StatusForbidden || res.Error == nil || res.Error.Code != ErrAdminAccessOnly {
		t.Errorf("abort: %d %+v", code, res.Error)
	}
}
