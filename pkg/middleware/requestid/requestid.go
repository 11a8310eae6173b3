package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request ID on both the request and the response, so
// clients and upstream proxies can correlate log lines across services.
const Header = "X-Request-ID"

const contextKey = "request_id"

// New tags every request with an ID, honoring one supplied by the caller,
// and echoes it back on the response.
func New() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the current request's ID, or "" outside the middleware.
func Value(c *gin.Context) string {
	v, _ := c.Get(contextKey)
	id, _ := v.(string)
	return id
}
