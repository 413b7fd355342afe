// Package apiserver exposes the engine's topic registry over HTTP (point
// queries) and WebSocket (live subscriptions), mirroring the teacher's gin
// router wiring and its internal/websocket hub pattern, adapted to stream
// record.Record values instead of session events and to log through zerolog
// instead of the standard log package.
package apiserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solomatovs/gauss/internal/logging"
)

const requestIDHeader = "X-Request-ID"
const requestIDKey = "request_id"

// requestID generates or forwards a correlation ID per request, the same
// contract as the teacher's middleware.RequestID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// structuredLogger logs one line per request through zerolog, the component
// logger's equivalent of the teacher's StructuredLogger.
func structuredLogger() gin.HandlerFunc {
	log := logging.Component("apiserver")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		evt := log.Info()
		status := c.Writer.Status()
		if status >= 500 {
			evt = log.Error()
		} else if status >= 400 {
			evt = log.Warn()
		}
		evt.
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// requestTimeout bounds ordinary REST handlers; it is never applied to the
// WebSocket route, whose whole point is a long-lived connection.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"error": "request timeout",
			})
		}
	}
}
