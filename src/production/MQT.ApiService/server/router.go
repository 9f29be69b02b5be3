package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/controllers"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/health"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/implementation/admission"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/middleware"
	config "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Logger"
	api_models "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models/api"
)

// Dependencies are the collaborators the router is assembled from
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	Admission *admission.Service
	Health    *health.HealthChecker
}

// New builds the gin engine serving the gateway
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config

	router := gin.New()
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(deps.Logger))
	router.Use(cors.New(corsConfig(cfg.CORS)))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	router.Use(middleware.ConcurrencyLimit(cfg.Server.MaxConcurrentRequests))

	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, api_models.ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})

	controllers.NewHealthController(deps.Health).RegisterRoutes(router)
	controllers.NewAdmissionController(deps.Admission, deps.Logger).RegisterRoutes(router)

	return router
}

func corsConfig(c config.CORSConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     c.AllowedMethods,
		AllowHeaders:     c.AllowedHeaders,
		ExposeHeaders:    c.ExposedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           time.Duration(c.MaxAge) * time.Second,
	}
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			corsCfg.AllowAllOrigins = true
			return corsCfg
		}
	}
	corsCfg.AllowOrigins = c.AllowedOrigins
	return corsCfg
}
