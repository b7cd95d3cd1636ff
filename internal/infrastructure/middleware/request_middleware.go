package middleware

import (
	"time"

	"reelgate/pkg/logger"
	"reelgate/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

type HTTPMetrics interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// RequestIDMiddleware reuses an incoming X-Request-ID or generates one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = utils.GenerateRequestID()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// RequestLogMiddleware logs each request and records its metrics. metrics
// may be nil.
func RequestLogMiddleware(log *logger.ContextLogger, metrics HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		log.LogRequest(c.Request.Context(), logger.RequestEntry{
			Method:   c.Request.Method,
			Route:    route,
			Status:   c.Writer.Status(),
			Duration: duration,
			ClientIP: clientIP(c.Request),
			Bytes:    max(c.Writer.Size(), 0),
		})
		if metrics != nil {
			metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), duration)
		}
	}
}
