package middleware

import (
	"context"
	"strings"
	"time"

	"ojjudge/pkg/utils/contextkey"
	"ojjudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"
)

// TraceContext ensures trace and request ids exist in the request context and response headers.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = bindHeader(c, ctx, traceIDHeader, "trace_id", contextkey.TraceID)
		ctx = bindHeader(c, ctx, requestIDHeader, "request_id", contextkey.RequestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bindHeader(c *gin.Context, ctx context.Context, header, ginKey string, key interface{}) context.Context {
	value := strings.TrimSpace(c.GetHeader(header))
	if value == "" {
		value = uuid.NewString()
	}
	c.Set(ginKey, value)
	c.Writer.Header().Set(header, value)
	return context.WithValue(ctx, key, value)
}

// RequestLogger logs one line per completed request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
