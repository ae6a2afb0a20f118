package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS lets the static frontend, often opened from file://, call the API.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id, X-Correlation-Id")
		h.Set("Access-Control-Expose-Headers", "Retry-After, X-Request-Id, X-Correlation-Id")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
