package adminapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDHeader is the response header carrying the per-request
// correlation id.
const requestIDHeader = "X-Request-Id"

// requestID attaches a fresh uuid to every admin request, echoed on
// X-Request-Id and available to handlers/logging via requestIDKeyName.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set(requestIDKeyName, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

const requestIDKeyName = "request_id"

// slogLogger logs each admin request at Info level, in the corpus's
// SlogRequestLogger style, including the correlation id requestID set.
func slogLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		if logger == nil {
			return
		}
		logger.Info("admin request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKeyName),
		)
	}
}

// requireAPIKey enforces a shared-secret API key via X-API-Key, mirroring
// the corpus's middleware.RequireAPIKey. An empty expected key disables
// the check (useful for a loopback-only deployment).
func requireAPIKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" || c.GetHeader("X-API-Key") == expected {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
}
