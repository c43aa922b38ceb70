package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/boom", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "kaboom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RequestID != "rid-500" || resp.Code != ErrCodeInternal || resp.Message != "kaboom" || resp.Problems != nil {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func Test_Fail_404_And_Validation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-4xx")
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "nope") })
	r.GET("/invalid", func(c *gin.Context) { failValidation(c, []string{"a", "b"}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || w.Code != http.StatusNotFound {
		t.Fatalf("404: %d %v", w.Code, err)
	}
	if er.RequestID != "rid-4xx" || er.Code != ErrCodeNotFound || er.Message != "nope" {
		t.Fatalf("unexpected 404 body: %+v", er)
	}
	if strings.Contains(w.Body.String(), "problems") {
		t.Fatalf("problems must be omitted outside validation errors: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invalid", nil))
	er = ErrorResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || w.Code != http.StatusBadRequest {
		t.Fatalf("400: %d %v", w.Code, err)
	}
	if er.Code != ErrCodeValidation || !reflect.DeepEqual(er.Problems, []string{"a", "b"}) {
		t.Fatalf("unexpected validation body: %+v", er)
	}
	if buf.Len() != 0 {
		t.Fatalf("4xx responses should not be logged here, got %s", buf.String())
	}
}

func Test_weakETag_ChangesWithSyncAndQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctxFor := func(target string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)
		return c
	}
	cp := &domain.SyncCheckpoint{LastSuccessAt: domain.NewTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))}
	later := &domain.SyncCheckpoint{LastSuccessAt: domain.NewTimestamp(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))}

	a := weakETag("records", cp, ctxFor("/records?q=teams"))
	if a != weakETag("records", cp, ctxFor("/records?q=teams")) {
		t.Fatalf("etag not stable")
	}
	if !strings.HasPrefix(a, `W/"records:`) {
		t.Fatalf("unexpected etag shape %q", a)
	}
	if a == weakETag("records", cp, ctxFor("/records?q=outlook")) {
		t.Fatalf("etag must depend on query")
	}
	if a == weakETag("records", later, ctxFor("/records?q=teams")) {
		t.Fatalf("etag must depend on last sync")
	}
	if weakETag("records", &domain.SyncCheckpoint{}, ctxFor("/records")) == "" {
		t.Fatalf("never-synced replica still gets an etag")
	}
}

func Test_notModified(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if notModified(c, `W/"x:1:ab"`) {
			return
		}
		okTagged(c, `W/"x:1:ab"`, gin.H{"fresh": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK || w.Header().Get("ETag") != `W/"x:1:ab"` {
		t.Fatalf("first request: %d etag=%q", w.Code, w.Header().Get("ETag"))
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("If-None-Match", `W/"x:1:ab"`)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 || w.Header().Get("ETag") != `W/"x:1:ab"` {
		t.Fatalf("conditional request: %d body=%q etag=%q", w.Code, w.Body.String(), w.Header().Get("ETag"))
	}

	// A mismatched tag alone writes nothing.
	r.GET("/y", func(c *gin.Context) {
		if notModified(c, `W/"y:1:cd"`) {
			return
		}
		fail(c, http.StatusNotFound, ErrCodeNotFound, "missing")
	})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/y", nil)
	req.Header.Set("If-None-Match", `W/"other"`)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound || w.Header().Get("ETag") != "" {
		t.Fatalf("error response: %d etag=%q", w.Code, w.Header().Get("ETag"))
	}
}
