package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxWebhookBodyBytes bounds provider payloads; recordings are fetched separately by URL.
const maxWebhookBodyBytes = 1 << 20

// LimitBody caps the request body so a misbehaving sender cannot exhaust memory.
func LimitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
