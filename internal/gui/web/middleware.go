package web

import (
	"time"

	"mask-calibrator/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request through the component logger. Polling requests
// are logged at debug level so they do not drown the review log.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := map[string]interface{}{
			"method": c.Request.Method,
			"path":   path,
			"query":  query,
			"status": c.Writer.Status(),
			"ip":     c.ClientIP(),
			"cost":   time.Since(start).String(),
		}
		if c.Request.Method == "GET" {
			log.Debug("WebSurface", "request", fields)
			return
		}
		log.Info("WebSurface", "request", fields)
	}
}
