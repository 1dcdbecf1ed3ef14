package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wahub/services/whatsapp-api/internal/infrastructure/metrics"
)

// Metrics records HTTP request metrics.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		metrics.RecordRequest(method, endpoint, status, duration)
	}
}
