package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Logger"
	api_models "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models/api"
	"golang.org/x/sync/semaphore"
)

// Timeout bounds the processing time of every request
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ConcurrencyLimit caps in-flight requests at n. A request that cannot get
// a slot before its deadline is rejected with 503.
func ConcurrencyLimit(n int64) gin.HandlerFunc {
	sem := semaphore.NewWeighted(n)
	return func(c *gin.Context) {
		if err := sem.Acquire(c.Request.Context(), 1); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, api_models.ErrorResponse{
				Error: "server busy",
				Code:  http.StatusServiceUnavailable,
			})
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}

// Recovery converts a panic into a 500 JSON error so one bad request never
// takes the worker down.
func Recovery(base *logger.Logger) gin.HandlerFunc {
	log := base.WithComponent("http")
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		RequestLogger(c, log).WithField("panic", recovered).Error("recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, api_models.ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	})
}
