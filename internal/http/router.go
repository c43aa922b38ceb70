// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, access logging, panic recovery, compression,
// metrics, rate limiting, CORS and security headers.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-roadmap-replica/internal/config"
	"github.com/tbourn/go-roadmap-replica/internal/docs"
	"github.com/tbourn/go-roadmap-replica/internal/http/handlers"
	"github.com/tbourn/go-roadmap-replica/internal/http/middleware"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access log
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip
//  7. Metrics
//  8. Rate limiter (per IP; health and metrics exempt)
//  9. CORS and Security headers
//
// syncer may be nil when the process serves a read-only replica.
func RegisterRoutes(r *gin.Engine, catalog handlers.CatalogService, syncer handlers.SyncTrigger, cfg config.Config, log zerolog.Logger) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Access log
	r.Use(middleware.Logger(log))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{metricsPath})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(metricsPath))
	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).
		Exempt(healthPath, metricsPath)
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "HEAD", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match", middleware.HeaderRequestID},
			ExposeHeaders:    []string{middleware.HeaderRequestID, "Content-Length", "ETag", "Retry-After"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "HEAD", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match", middleware.HeaderRequestID},
			ExposeHeaders:    []string{middleware.HeaderRequestID, "Content-Length", "ETag", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	apiBase := cfg.APIBasePath // e.g. "/api/v1"

	// Security headers (HSTS only when enabled and request is HTTPS).
	// Sync state changes independently of replica reads and is never cached.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		ReadMaxAge:   cfg.CacheMaxAge,
		NoCachePaths: []string{
			healthPath,
			metricsPath,
			joinPath(apiBase, "/sync"),
			joinPath(apiBase, "/sync/runs"),
		},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET(healthPath, func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(catalog, syncer)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Records
		api.GET("/records", h.SearchRecords)
		api.POST("/records/search", h.SearchRecordsBody)
		api.GET("/records/:id", h.GetRecord)
		api.GET("/vocabulary", h.GetVocabulary)

		// Replication
		api.GET("/sync", h.GetSyncStatus)
		api.GET("/sync/runs", h.ListSyncRuns)
		api.POST("/sync", h.TriggerSync)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath appends p to a normalized base path.
func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
