// Package middleware contains the Gin middleware of the replica's HTTP API.
//
// This file provides structured request logging, a panic-safe recovery
// handler, and a request ID injector:
//
//   - RequestID() ensures every request carries a correlation ID
//     (propagated via X-Request-ID and stored in the Gin context).
//   - Logger(base) emits one structured access log per request, attaches a
//     request-scoped zerolog.Logger, and selects the level by outcome.
//   - Recovery() converts panics into JSON 500 responses that keep the
//     correlation ID, and logs the stack trace.
//   - LoggerFrom() retrieves the request-scoped logger inside handlers
//     (e.g., LoggerFrom(c).Info().Str("record_id", id).Msg("...")).
//
// Design notes:
//   - Install them in this order so panics and errors carry the id:
//     1) RequestID()
//     2) Logger(base)
//     3) Recovery()
//   - Query strings are truncated to a capped length to avoid log bloat.
//   - The request-scoped logger is stored under the "logger" Gin context key
//     and the id under "requestID".
//   - Requests carry no credentials, so nothing is redacted.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// HeaderRequestID propagates the correlation ID.
	HeaderRequestID = "X-Request-ID"
	// loggerKey holds the request-scoped *zerolog.Logger.
	loggerKey = "logger"

	maxQueryLogLength = 2048
	maxRequestIDLen   = 128
)

// RequestID attaches (or propagates) a correlation identifier per request.
//
// Behavior:
//   - A client supplied X-Request-ID is reused when it is at most 128 bytes
//     of printable ASCII. Otherwise a new UUIDv4 is generated, so ids with
//     spaces or control characters never reach logs or response headers.
//   - The ID is written back to the response header (X-Request-ID) and stored
//     in the Gin context under the "requestID" key.
//
// Place this early in the chain so subsequent middleware and handlers can
// rely on the ID for logging and error responses.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// RequestIDFrom returns the id set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// Logger writes a structured access log for each request and response,
// derived from base.
//
// Features:
//   - Records method, route (the Gin pattern when one matched), remote IP,
//     user agent, truncated query, correlation ID, request size, response
//     status, latency and bytes written.
//   - Stores the request-scoped logger in the Gin context (key "logger").
//   - Chooses the level from the outcome:
//   - error() for 5xx or when the Gin context contains errors,
//   - warn()  for 4xx,
//   - debug() for successful /health and /metrics probes,
//   - info()  otherwise.
//
// Note: place this after RequestID() so logs include the correlation ID.
func Logger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		l := base.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.With().
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		case route == "/health" || route == "/metrics":
			ev.Debug().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs a stack trace, and returns a JSON 500 error.
//
// Behavior:
//   - Logs the panic value and stack trace through the request-scoped logger.
//   - If no response has been written, emits the standard error envelope:
//     { "request_id": "...", "code": "internal_error", "message": "internal server error" }
//   - Otherwise only the status is forced to 500.
//
// Place this after Logger() so the panic is captured with structured context.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid := RequestIDFrom(c)
				LoggerFrom(c).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header(HeaderRequestID, rid)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": rid,
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// Logger is not installed.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Str("request_id", RequestIDFrom(c)).Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate operates on bytes, which is fine for log fields.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
