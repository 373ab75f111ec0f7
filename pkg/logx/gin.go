package logx

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logx.logger"
	requestIDKey    = "logx.request_id"
)

// GinMiddleware assigns a request id, stores a request-scoped logger on the
// gin context and logs one line per request at a level chosen by status.
func GinMiddleware(base *Logger) gin.HandlerFunc {
	httpLog := base.WithComponent(ComponentHTTP)
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)
		c.Set(requestIDKey, rid)
		c.Set(loggerKey, base.With(FieldRequestID, rid))

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		args := []any{
			FieldRequestID, rid,
			FieldMethod, c.Request.Method,
			FieldPath, c.FullPath(),
			FieldStatus, status,
			FieldDuration, time.Since(start).Milliseconds(),
			FieldClientIP, c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			args = append(args, FieldError, c.Errors.String())
		}
		httpLog.Log(c.Request.Context(), level, "request completed", args...)
	}
}

// FromGin returns the request-scoped logger, or fallback when the
// middleware did not run.
func FromGin(c *gin.Context, fallback *Logger) *Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*Logger); ok {
			return l
		}
	}
	return fallback
}

// RequestID returns the id assigned by GinMiddleware.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
