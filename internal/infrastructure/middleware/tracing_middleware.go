package middleware

import (
	"reelgate/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TracingMiddleware opens a server span per request, named after the
// matched route. It runs after RequestIDMiddleware.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
		defer span.End()

		span.SetAttributes(
			tracing.RequestIDKey.String(c.GetString(RequestIDKey)),
			attribute.String("http.client_ip", clientIP(c.Request)),
			attribute.String("http.user_agent", c.Request.UserAgent()),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if viewer := ViewerFromContext(c); !viewer.Anonymous() {
			span.SetAttributes(tracing.UserIDKey.String(string(viewer.UserID)))
		}
		tracing.EndHTTPRequest(span, c.Writer.Status(), max(c.Writer.Size(), 0), c.Errors.String())
	}
}
