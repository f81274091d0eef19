package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID is the correlation header echoed on every response.
const HeaderRequestID = "X-Request-ID"

// ContextRequestID is the gin context key holding the resolved id.
const ContextRequestID = "request_id"

// RequestID tags each request with a correlation id. A client-supplied
// header value is kept so kiosk retries stay traceable; otherwise a fresh
// uuid is minted.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}
