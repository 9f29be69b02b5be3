package container

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	config "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Series:   config.SeriesConfig{Backend: "memory"},
		Auth: config.AuthConfig{
			JWTSecretKey:    "container-secret",
			FreshnessWindow: 24 * time.Hour,
			MaxClockSkew:    5 * time.Minute,
			ChipIDPolicy:    "exact15",
		},
	}
}

func TestContainer_MemoryLifecycle(t *testing.T) {
	c := NewContainerWithConfig(memoryConfig(), logger.NewNopLogger())
	ctx := context.Background()

	if _, err := c.GetAdmissionService(); err == nil {
		t.Fatal("expected an error before Initialize")
	}

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	if svc, err := c.GetAdmissionService(); err != nil || svc == nil {
		t.Fatalf("GetAdmissionService = %v, %v", svc, err)
	}
	checker, err := c.GetHealthChecker()
	if err != nil {
		t.Fatalf("GetHealthChecker: %v", err)
	}
	if status, _ := checker.CheckReadiness(ctx); status != "ok" {
		t.Fatalf("readiness = %q", status)
	}

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestContainer_SQLiteRegistry(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = t.TempDir() + "/registry/producers.db"

	c := NewContainerWithConfig(cfg, logger.NewNopLogger())
	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Shutdown(ctx)

	created, err := c.registry.Register(ctx, "123456789012345")
	if err != nil || !created {
		t.Fatalf("Register = %v, %v", created, err)
	}
}

func TestContainer_RejectsUnknownPolicy(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.ChipIDPolicy = "loose"

	c := NewContainerWithConfig(cfg, logger.NewNopLogger())
	if err := c.Initialize(context.Background()); err == nil {
		t.Fatal("expected an error for an unknown chip id policy")
	}
}

func TestContainer_ShutdownClosesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	t.Setenv("REGISTRY_DRIVER", "memory")
	t.Setenv("SERIES_BACKEND", "memory")
	t.Setenv("JWT_SECRET_KEY", "container-secret")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_OUTPUT", path)

	c, err := NewContainer("does-not-exist.env")
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "Container shutdown complete") {
		t.Fatalf("final shutdown line missing from log file: %s", data)
	}
	// the file is released, so a second Close has nothing to do
	if err := c.GetLogger().Close(); err != nil {
		t.Fatalf("Close after Shutdown: %v", err)
	}
}
