package health

import (
	"context"
	"errors"
	"testing"

	memory "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Repository/Memory"
)

func TestCheckReadiness(t *testing.T) {
	registry := memory.NewRegistryRepository()
	series := memory.NewSeriesRepository()

	h := NewHealthChecker(map[string]Pinger{
		"registry": registry,
		"series":   series,
		"relay":    nil,
	})

	status, checks := h.CheckReadiness(context.Background())
	if status != StatusOK {
		t.Fatalf("status = %q, want ok", status)
	}
	if len(checks) != 2 || checks["registry"] != StatusOK || checks["series"] != StatusOK {
		t.Fatalf("unexpected checks %v", checks)
	}

	registry.FailWith = errors.New("connection refused")
	status, checks = h.CheckReadiness(context.Background())
	if status != StatusDegraded {
		t.Fatalf("status = %q, want degraded", status)
	}
	if checks["registry"] != "connection refused" {
		t.Errorf("registry check = %q", checks["registry"])
	}
}
