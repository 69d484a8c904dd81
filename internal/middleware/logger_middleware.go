// Package middleware provides the gin middleware shared by all routes.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arrayops/librarian/internal/logger"
)

// LoggerMiddleware holds the request logging middleware.
type LoggerMiddleware struct {
	logger *logrus.Logger
}

// NewLoggerMiddleware creates the middleware using the global logger.
func NewLoggerMiddleware() *LoggerMiddleware {
	return &LoggerMiddleware{
		logger: logger.GetLogger(),
	}
}

// RequestID assigns every request a uuid used in the response envelope
// and in log correlation.
func (m *LoggerMiddleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestLogger logs one line per completed request.
func (m *LoggerMiddleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		m.logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"status":     c.Writer.Status(),
			"latency":    latency,
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"raw_query":  raw,
			"errors":     c.Errors.String(),
		}).Info("HTTP request")
	}
}
