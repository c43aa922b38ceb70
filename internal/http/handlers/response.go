// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint: the error
// envelope, success writers and weak ETags for replica reads. Replica data
// only changes when a sync pass commits, so read responses are tagged with
// the last successful pass and the request's query.
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
	"github.com/tbourn/go-roadmap-replica/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"record not found"`
	// Every validation problem, set only with code validation_failed
	Problems []string `json:"problems,omitempty" example:"limit must not be negative"`
}

// fail aborts the request with the error envelope. 5xx responses are
// logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, ErrorResponse{Code: code, Message: msg})
}

func failWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get(middleware.HeaderRequestID)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// failValidation answers 400 validation_failed listing problems.
func failValidation(c *gin.Context, problems []string) {
	failWith(c, http.StatusBadRequest, ErrorResponse{
		Code:     ErrCodeValidation,
		Message:  "invalid search request",
		Problems: problems,
	})
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// weakETag builds a validator from the last successful sync and the raw
// query, so any new pass or different query yields a different tag.
func weakETag(kind string, cp *domain.SyncCheckpoint, c *gin.Context) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(c.Request.URL.Path))
	_, _ = h.Write([]byte{'?'})
	_, _ = h.Write([]byte(c.Request.URL.RawQuery))
	var stamp int64
	if !cp.LastSuccessAt.IsZero() {
		stamp = cp.LastSuccessAt.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%d:%x"`, kind, stamp, h.Sum64())
}

// notModified reports whether the request's If-None-Match already matches
// etag, in which case 304 has been written with the tag.
func notModified(c *gin.Context, etag string) bool {
	if inm := c.GetHeader("If-None-Match"); etag != "" && inm == etag {
		c.Header("ETag", etag)
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// okTagged writes a 200 body carrying etag. Only successful reads are
// tagged; errors must not be revalidated from cache.
func okTagged(c *gin.Context, etag string, body any) {
	if etag != "" {
		c.Header("ETag", etag)
	}
	ok(c, http.StatusOK, body)
}
