package middleware

import (
	"github.com/ErlanBelekov/quicksand/internal/reqctx"
	"github.com/gin-gonic/gin"
)

const maxRequestIDLength = 128

// RequestID injects a request ID into the context and response header.
// An incoming X-Request-ID is preserved unless it is oversized.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" || len(id) > maxRequestIDLength {
			id = reqctx.NewRequestID()
		}

		ctx := reqctx.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
