package utils

import (
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ginzap logs every request through logger once the handler chain returns.
func Ginzap(logger *zap.Logger, timeFormat string, utc bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		c.Next()

		end := time.Now()
		if utc {
			end = end.UTC()
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("request_id", c.Writer.Header().Get("X-Request-ID")),
			zap.String("time", end.Format(timeFormat)),
			zap.Duration("latency", end.Sub(start)),
		}
		if len(c.Errors) > 0 {
			for _, e := range c.Errors.Errors() {
				logger.Error(e, fields...)
			}
			return
		}
		logger.Info(path, fields...)
	}
}

// RecoveryWithZap turns panics into a logged 500 with the standard error envelope.
// Broken client connections are logged but not answered.
func RecoveryWithZap(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if brokenPipe(rec) {
				logger.Warn("connection closed by client", zap.Any("error", rec), zap.String("path", c.Request.URL.Path))
				c.Abort()
				return
			}
			fields := []zap.Field{
				zap.Any("error", rec),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.Writer.Header().Get("X-Request-ID")),
			}
			if stack {
				fields = append(fields, zap.String("stack", string(debug.Stack())))
			}
			logger.Error("panic recovered", fields...)
			Error(c, http.StatusInternalServerError, "internal server error")
			c.Abort()
		}()
		c.Next()
	}
}

func brokenPipe(rec interface{}) bool {
	ne, ok := rec.(*net.OpError)
	if !ok {
		return false
	}
	se, ok := ne.Err.(*os.SyscallError)
	if !ok {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
