package mqtmodels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyReading is returned when the body is absent, empty or not a JSON object
	ErrEmptyReading = errors.New("JSON body is required")

	// ErrMetricNotNumeric is returned when a known metric carries a non-numeric value
	ErrMetricNotNumeric = errors.New("metric value must be a number")
)

// Reading is one accepted sample from a chip, all metrics sharing TimestampMs
type Reading struct {
	ChipID      string             `json:"chip_id"`
	TimestampMs int64              `json:"timestamp_ms"`
	Values      map[Metric]float64 `json:"values"`
	SSID        *string            `json:"ssid,omitempty"`
}

// ParseReading decodes an ingest body. It returns the decoded object (numbers
// kept as json.Number so the echo matches the input), the numeric metrics it
// carries and the optional network id. Absent or null metrics are skipped.
func ParseReading(body []byte) (map[string]interface{}, map[Metric]float64, *string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil || len(raw) == 0 {
		return nil, nil, nil, ErrEmptyReading
	}

	values := make(map[Metric]float64, len(raw))
	for field, v := range raw {
		metric, ok := MetricForField(field)
		if !ok || v == nil {
			continue
		}
		n, ok := v.(json.Number)
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrMetricNotNumeric, field)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrMetricNotNumeric, field)
		}
		values[metric] = f
	}

	var ssid *string
	if s, ok := raw["ssid"].(string); ok {
		ssid = &s
	}

	return raw, values, ssid, nil
}
