package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xiebiao/bookcatalog/pkg/logger"
	"github.com/xiebiao/bookcatalog/pkg/tracing"
)

// HeaderRequestID 请求ID头，客户端传入时沿用
const HeaderRequestID = "X-Request-ID"

// RequestLogger 请求日志
// 为每个请求生成request_id，并把带request_id的Logger放入请求Context
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		l := base.With("request_id", requestID)
		if traceID := tracing.ExtractTraceID(c.Request.Context()); traceID != "" {
			l = l.With("trace_id", traceID)
		}
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), l))

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			l.Error("请求完成", attrs...)
		case status >= 400:
			l.Warn("请求完成", attrs...)
		default:
			l.Info("请求完成", attrs...)
		}
	}
}
