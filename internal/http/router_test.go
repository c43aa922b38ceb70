package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-roadmap-replica/internal/config"
	"github.com/tbourn/go-roadmap-replica/internal/domain"
	"github.com/tbourn/go-roadmap-replica/internal/search"
	"github.com/tbourn/go-roadmap-replica/internal/services"
)

// --- tiny fakes to satisfy the handler contracts ---
type fakeCatalog struct{}

func (fakeCatalog) Search(context.Context, search.Request) (*search.Response, error) {
	return &search.Response{Results: []domain.RecordSummary{}, Limit: search.DefaultLimit}, nil
}

func (fakeCatalog) GetByID(context.Context, string) (*domain.Record, error) {
	return nil, services.ErrRecordNotFound
}

func (fakeCatalog) Vocabulary(context.Context) (*domain.Vocabulary, error) {
	tags := make([]string, 200)
	for i := range tags {
		tags[i] = "Microsoft Teams"
	}
	return &domain.Vocabulary{Tags: tags, Categories: []string{}, Products: []string{}, Statuses: []string{}, AvailabilityRings: []string{}}, nil
}

func (fakeCatalog) SyncStatus(context.Context) (*domain.SyncCheckpoint, error) {
	return &domain.SyncCheckpoint{Status: domain.SyncStatusSuccess, LastSyncTimestamp: domain.Epoch}, nil
}

func (fakeCatalog) SyncRuns(context.Context, int) ([]domain.SyncRun, error) {
	return []domain.SyncRun{}, nil
}

type fakeTrigger struct{ calls int }

func (f *fakeTrigger) Trigger(context.Context) bool { f.calls++; return true }

func testConfig() config.Config {
	return config.Config{
		APIBasePath:  "/api/v1",
		MaxBodyBytes: 1 << 10,
		CacheMaxAge:  30 * time.Second,
		RateRPS:      100,
		RateBurst:    10,
		CORS:         config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:     config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:         config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config, trig *fakeTrigger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if trig == nil {
		RegisterRoutes(r, fakeCatalog{}, nil, cfg, zerolog.Nop())
	} else {
		RegisterRoutes(r, fakeCatalog{}, trig, cfg, zerolog.Nop())
	}
	return r
}

func serve(r http.Handler, method, target string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newRouter(t, testConfig(), nil)

	// /health works
	w := serve(r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = serve(r, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = serve(r, http.MethodGet, "/nope", nil, nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("GET /nope expected 404 envelope, got %d %s", w.Code, w.Body.String())
	}

	// NoMethod → 405 (POST /health)
	w = serve(r, http.MethodPost, "/health", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newRouter(t, cfg, nil)

	w := serve(r, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	// API mounted under the configured base path.
	if w := serve(r, http.MethodGet, "/api/v2/sync", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("GET /api/v2/sync = %d", w.Code)
	}
}

func TestRegisterRoutes_APIEndpoints(t *testing.T) {
	trig := &fakeTrigger{}
	r := newRouter(t, testConfig(), trig)

	w := serve(r, http.MethodGet, "/api/v1/records?q=teams", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET records = %d %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=30" {
		t.Fatalf("records Cache-Control = %q", got)
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("records missing ETag")
	}

	w = serve(r, http.MethodGet, "/api/v1/records/nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET missing record = %d", w.Code)
	}

	w = serve(r, http.MethodPost, "/api/v1/records/search", strings.NewReader(`{"query":"teams"}`), map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusOK {
		t.Fatalf("POST search = %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/api/v1/sync", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("GET sync = %d cache=%q", w.Code, w.Header().Get("Cache-Control"))
	}
	w = serve(r, http.MethodGet, "/api/v1/sync/runs", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("GET sync runs = %d cache=%q", w.Code, w.Header().Get("Cache-Control"))
	}

	w = serve(r, http.MethodPost, "/api/v1/sync", nil, nil)
	if w.Code != http.StatusAccepted || trig.calls != 1 {
		t.Fatalf("POST sync = %d calls=%d", w.Code, trig.calls)
	}
}

func TestRegisterRoutes_BodyLimitAndGzip(t *testing.T) {
	r := newRouter(t, testConfig(), nil)

	big := `{"query":"` + strings.Repeat("a", 4<<10) + `"}`
	w := serve(r, http.MethodPost, "/api/v1/records/search", strings.NewReader(big), map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body expected 413, got %d", w.Code)
	}

	w = serve(r, http.MethodGet, "/api/v1/vocabulary", nil, map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET vocabulary = %d", w.Code)
	}
	if got := w.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", got)
	}
}

func TestRegisterRoutes_RateLimitExemptsHealth(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0
	cfg.RateBurst = 1
	r := newRouter(t, cfg, nil)

	if w := serve(r, http.MethodGet, "/api/v1/sync", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("first call = %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/api/v1/sync", nil, nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second call = %d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
	for i := 0; i < 3; i++ {
		if w := serve(r, http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
			t.Fatalf("health should be exempt, got %d", w.Code)
		}
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	r := newRouter(t, cfg, nil)
	if w := serve(r, http.MethodGet, "/swagger/doc.json", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled expected 404, got %d", w.Code)
	}

	cfg.SwaggerEnabled = true
	r = newRouter(t, cfg, nil)
	w := serve(r, http.MethodGet, "/swagger/doc.json", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/records/search") {
		t.Fatalf("swagger doc = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"basePath": "/api/v1"`) {
		t.Fatalf("swagger basePath not set")
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"), nil) // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	// non-root prefix
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := serve(r, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func Test_joinPath(t *testing.T) {
	cases := map[[2]string]string{
		{"/api/v1", "/sync"}: "/api/v1/sync",
		{"/", "/sync"}:       "/sync",
		{"", "/sync"}:        "/sync",
	}
	for in, want := range cases {
		if got := joinPath(in[0], in[1]); got != want {
			t.Fatalf("joinPath(%q, %q) = %q; want %q", in[0], in[1], got, want)
		}
	}
}
