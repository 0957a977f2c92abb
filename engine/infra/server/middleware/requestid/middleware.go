package requestid

import (
	"github.com/compozy/docqa/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request identifier in both directions.
const Header = "X-Request-ID"

const maxIncomingLength = 128

// Middleware reuses a sane incoming request id or generates one, echoes it
// back, and attaches it to the request logger.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" || len(id) > maxIncomingLength {
			id = uuid.NewString()
		}
		c.Header(Header, id)
		c.Set(Header, id)
		ctx := c.Request.Context()
		log := logger.FromContext(ctx).With("request_id", id)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(ctx, log))
		c.Next()
	}
}

// FromGin returns the request id assigned by Middleware.
func FromGin(c *gin.Context) string {
	return c.GetString(Header)
}
