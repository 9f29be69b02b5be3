package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Logger"
	metrics "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Metrics"
)

// AccessLog logs one line per request and records its duration.
// The query string is left out because it carries the credential.
func AccessLog(base *logger.Logger) gin.HandlerFunc {
	log := base.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())

		RequestLogger(c, log).WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Info("request")
	}
}
