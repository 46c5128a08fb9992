package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl lets the browser reuse a response for maxAgeSeconds.
// Responses carry a student token, so shared caches must not keep them.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}

// NoStore marks responses that must never be cached, such as tokens and results.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
