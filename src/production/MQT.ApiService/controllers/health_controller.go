package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/health"
	api_models "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models/api"
)

// HealthController handles liveness, readiness and metrics requests
type HealthController struct {
	checker *health.HealthChecker
	now     func() time.Time
}

// NewHealthController creates a new health controller
func NewHealthController(checker *health.HealthChecker) *HealthController {
	return &HealthController{checker: checker, now: time.Now}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, api_models.HealthResponse{
		Status:    "healthy",
		Timestamp: c.now().UTC().Format(time.RFC3339),
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	status, checks := c.checker.CheckReadiness(ctx.Request.Context())

	code := http.StatusOK
	if status != health.StatusOK {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, api_models.ReadinessResponse{
		Status:    status,
		Timestamp: c.now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}
