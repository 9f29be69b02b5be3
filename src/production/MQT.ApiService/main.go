package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/server"
	container "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Container"
	metrics "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Metrics"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	pflag.Parse()

	// Initialize dependency injection container
	ctr, err := container.NewContainer(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize container: %v\n", err)
		os.Exit(1)
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	logger.Info("Starting meteo gateway")

	if config.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.Register()

	// Connect stores and build the admission service
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := ctr.Initialize(ctx); err != nil {
		logger.ErrorWithError(err, "Failed to initialize backing stores")
		ctr.Shutdown(context.Background())
		os.Exit(1)
	}

	admissionService, err := ctr.GetAdmissionService()
	if err != nil {
		logger.FatalWithError(err, "Failed to get admission service")
	}
	healthChecker, err := ctr.GetHealthChecker()
	if err != nil {
		logger.FatalWithError(err, "Failed to get health checker")
	}

	router := server.New(server.Dependencies{
		Config:    config,
		Logger:    logger,
		Admission: admissionService,
		Health:    healthChecker,
	})

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		var err error
		if config.TLSEnabled() {
			logger.Info("HTTPS server starting on port " + port)
			err = srv.ListenAndServeTLS(config.Server.TLSCertFile, config.Server.TLSKeyFile)
		} else {
			logger.Warn("TLS not configured, serving plain HTTP on port " + port + "; terminate TLS upstream")
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("Meteo gateway running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
