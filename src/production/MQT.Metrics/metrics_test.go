package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, operation, outcome string) float64 {
	t.Helper()
	var m dto.Metric
	if err := AdmissionOutcomesTotal.WithLabelValues(operation, outcome).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRegisterTwice(t *testing.T) {
	Register()
	Register()
}

func TestRecordOutcome(t *testing.T) {
	before := counterValue(t, "ingest", "accepted")
	RecordOutcome("ingest", "accepted")
	if got := counterValue(t, "ingest", "accepted") - before; got != 1 {
		t.Fatalf("counter moved by %v, want 1", got)
	}
}
