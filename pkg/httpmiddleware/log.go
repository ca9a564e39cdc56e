package httpmiddleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// InjectLogger stores lg, annotated with the request id, in the request
// context so handlers and services can use zctx.From. It must run after
// RequestID.
func InjectLogger(lg *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = zctx.Base(ctx, lg)
		if id := RequestIDFromContext(ctx); id != "" {
			ctx = zctx.With(ctx, zap.String("request_id", id))
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// LogRequests logs one line per request with its route template, status and
// duration. Server errors are logged at error level.
func LogRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		lg := zctx.From(c.Request.Context())
		if c.Writer.Status() >= 500 {
			lg.Error("Request", fields...)
			return
		}
		lg.Info("Request", fields...)
	}
}
