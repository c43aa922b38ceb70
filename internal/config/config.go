// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// HTTP server, logging, the local store, the remote catalog client, the
// replication schedule, rate limiting and observability.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "roadmap-replica")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RemoteConfig describes the upstream change catalog.
type RemoteConfig struct {
	BaseURL     string        // REMOTE_BASE_URL
	PageSize    int           // REMOTE_PAGE_SIZE, items per request
	Timeout     time.Duration // REMOTE_TIMEOUT, per request
	MaxRetries  int           // REMOTE_MAX_RETRIES, retries after the first attempt
	BackoffBase time.Duration // REMOTE_BACKOFF_BASE
	BackoffMax  time.Duration // REMOTE_BACKOFF_MAX
	RateRPS     float64       // REMOTE_RATE_RPS, 0 = unlimited
	MaxPages    int           // REMOTE_MAX_PAGES, hard stop per pass
}

// SyncConfig controls when replication passes run.
type SyncConfig struct {
	OnStart         bool          // SYNC_ON_START: trigger a pass at boot when stale
	StaleAfter      time.Duration // SYNC_STALE_AFTER
	LockTTL         time.Duration // SYNC_LOCK_TTL: age after which an in_progress pass is abandoned
	RetentionCutoff time.Time     // SYNC_RETENTION_CUTOFF (YYYY-MM-DD), zero = keep all
	KeepRuns        int           // SYNC_KEEP_RUNS: history rows retained
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request body cap
	CacheMaxAge       time.Duration // Cache-Control max-age for replica reads, 0 = no-store
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Store
	DBPath string // SQLite path

	// Replication
	Remote RemoteConfig
	Sync   SyncConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// DefaultRemoteURL is the public roadmap feed.
const DefaultRemoteURL = "https://www.microsoft.com/releasecommunications/api/v2/m365"

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 64<<10)),
		CacheMaxAge:       getdur("CACHE_MAX_AGE", 30*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Store
		DBPath: getenv("DB_PATH", "roadmap.db"),

		// Replication
		Remote: RemoteConfig{
			BaseURL:     getenv("REMOTE_BASE_URL", DefaultRemoteURL),
			PageSize:    getint("REMOTE_PAGE_SIZE", 100),
			Timeout:     getdur("REMOTE_TIMEOUT", 30*time.Second),
			MaxRetries:  getint("REMOTE_MAX_RETRIES", 3),
			BackoffBase: getdur("REMOTE_BACKOFF_BASE", time.Second),
			BackoffMax:  getdur("REMOTE_BACKOFF_MAX", 30*time.Second),
			RateRPS:     getfloat("REMOTE_RATE_RPS", 0),
			MaxPages:    getint("REMOTE_MAX_PAGES", 500),
		},
		Sync: SyncConfig{
			OnStart:    getbool("SYNC_ON_START", true),
			StaleAfter: getdur("SYNC_STALE_AFTER", 24*time.Hour),
			LockTTL:    getdur("SYNC_LOCK_TTL", time.Hour),
			KeepRuns:   getint("SYNC_KEEP_RUNS", 200),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "roadmap-replica"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Remote.BaseURL), "/")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if cfg.CacheMaxAge < 0 {
		return cfg, errors.New("CACHE_MAX_AGE must be >= 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if u, err := url.Parse(cfg.Remote.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return cfg, errors.New("REMOTE_BASE_URL must be an absolute http(s) URL")
	}
	if cfg.Remote.PageSize < 1 || cfg.Remote.PageSize > 1000 {
		return cfg, errors.New("REMOTE_PAGE_SIZE must be between 1 and 1000")
	}
	if cfg.Remote.Timeout <= 0 {
		return cfg, errors.New("REMOTE_TIMEOUT must be > 0")
	}
	if cfg.Remote.MaxRetries < 0 {
		return cfg, errors.New("REMOTE_MAX_RETRIES must be >= 0")
	}
	if cfg.Remote.BackoffBase <= 0 || cfg.Remote.BackoffMax < cfg.Remote.BackoffBase {
		return cfg, errors.New("REMOTE_BACKOFF_BASE must be > 0 and <= REMOTE_BACKOFF_MAX")
	}
	if cfg.Remote.RateRPS < 0 {
		return cfg, errors.New("REMOTE_RATE_RPS must be >= 0")
	}
	if cfg.Remote.MaxPages < 1 {
		return cfg, errors.New("REMOTE_MAX_PAGES must be >= 1")
	}
	if cfg.Sync.StaleAfter <= 0 {
		return cfg, errors.New("SYNC_STALE_AFTER must be > 0")
	}
	if cfg.Sync.LockTTL <= 0 {
		return cfg, errors.New("SYNC_LOCK_TTL must be > 0")
	}
	if cfg.Sync.KeepRuns < 0 {
		return cfg, errors.New("SYNC_KEEP_RUNS must be >= 0")
	}
	if v := strings.TrimSpace(os.Getenv("SYNC_RETENTION_CUTOFF")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return cfg, errors.New("SYNC_RETENTION_CUTOFF must be a YYYY-MM-DD date")
		}
		cfg.Sync.RetentionCutoff = t
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
