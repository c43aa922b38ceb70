// Package middleware contains the Gin middleware of the replica's HTTP API.
//
// This file provides SecurityHeaders, a hardening middleware that attaches a
// conservative set of HTTP security headers to a JSON API running behind a
// reverse proxy. It also owns the cache policy of the replica: reads only
// change after a sync pass, so GET and HEAD responses may be cached for a
// short, configured time while everything else is marked no-store.
//
// Design notes:
//   - No CSP: the API serves no HTML apart from the optional Swagger UI
//   - HSTS is opt-in and only applied when the request is actually HTTPS
//   - Cache-Control is decided per request from the method and the path;
//     sync, health and metrics paths are always no-store
//   - Handlers add a weak ETag to cacheable 200 responses; this middleware
//     does not inspect bodies
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
//
// HSTSMaxAge is the lifetime for HSTS. Common values are 15552000 (180 days)
// or 31536000 (1 year). Zero or negative values fall back to 180 days.
//
// ReadMaxAge is normally CACHE_MAX_AGE. It should stay shorter than the
// interval between sync passes, since cached pages are not revalidated
// before it expires.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// ReadMaxAge, when positive, sends "Cache-Control: public, max-age=N" on
	// GET and HEAD responses. Other methods, and reads when it is zero, get
	// no-store.
	ReadMaxAge time.Duration
	// NoCachePaths always get no-store (sync status, metrics).
	NoCachePaths []string
}

// SecurityHeaders returns a middleware attaching conservative security and
// cache headers to every response.
//
// Behavior:
//   - Always sets:
//     X-Content-Type-Options: nosniff
//     X-Frame-Options: DENY
//     Referrer-Policy: no-referrer
//   - Optionally sets (when EnablePolicy):
//     Permissions-Policy: geolocation=(), microphone=(), camera=(), payment=()
//     X-Permitted-Cross-Domain-Policies: none
//   - Sets Cache-Control to "public, max-age=<ReadMaxAge>" for GET and HEAD
//     outside NoCachePaths when ReadMaxAge > 0, and to "no-store" otherwise.
//   - Optionally sets (when EnableHSTS && request is HTTPS):
//     Strict-Transport-Security: max-age=<seconds>; includeSubDomains; preload
//   - Appends X-Request-ID to Access-Control-Expose-Headers when the request
//     id header is already present, so browser clients can read it.
//
// Headers are set before c.Next(), so handlers may still override them.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	readCache := ""
	if secs := int(opt.ReadMaxAge.Seconds()); secs > 0 {
		readCache = "public, max-age=" + strconv.Itoa(secs)
	}
	noCache := make(map[string]struct{}, len(opt.NoCachePaths))
	for _, p := range opt.NoCachePaths {
		noCache[p] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		_, forceNoStore := noCache[c.Request.URL.Path]
		isRead := c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead
		if isRead && readCache != "" && !forceNoStore {
			h.Set("Cache-Control", readCache)
		} else {
			h.Set("Cache-Control", "no-store")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		// Let browser clients read the correlation id.
		if h.Get(HeaderRequestID) != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			switch {
			case cur == "":
				h.Set(hdr, HeaderRequestID)
			case !strings.Contains(cur, HeaderRequestID):
				h.Set(hdr, cur+", "+HeaderRequestID)
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request arrived over TLS directly or via a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
