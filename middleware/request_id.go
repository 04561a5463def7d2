package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is read from and echoed back on every response.
	RequestIDHeader = "X-Request-ID"
	// ContextRequestIDKey stores the request id inside Gin context.
	ContextRequestIDKey = "request_id"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		ctx.Set(ContextRequestIDKey, id)
		ctx.Header(RequestIDHeader, id)
		ctx.Next()
	}
}
