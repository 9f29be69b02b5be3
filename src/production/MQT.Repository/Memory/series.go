package memory

import (
	"context"
	"sync"

	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
)

// Point is one stored sample
type Point struct {
	TimestampMs int64
	Value       float64
}

// SeriesRepository is an in-process time-series store keyed like the Redis one.
type SeriesRepository struct {
	mu     sync.RWMutex
	series map[string][]Point

	// FailWith, when set, is returned by every write.
	FailWith error
}

func NewSeriesRepository() *SeriesRepository {
	return &SeriesRepository{series: make(map[string][]Point)}
}

func (s *SeriesRepository) EnsureSeries(_ context.Context, chipID string, metrics []mqtmodels.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	for _, m := range metrics {
		key := mqtmodels.SeriesKey(chipID, m)
		if _, ok := s.series[key]; !ok {
			s.series[key] = []Point{}
		}
	}
	return nil
}

func (s *SeriesRepository) Append(_ context.Context, chipID string, metric mqtmodels.Metric, timestampMs int64, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	key := mqtmodels.SeriesKey(chipID, metric)
	s.series[key] = append(s.series[key], Point{TimestampMs: timestampMs, Value: value})
	return nil
}

// AppendBatch applies all metrics under one lock so readers never see half a reading
func (s *SeriesRepository) AppendBatch(_ context.Context, chipID string, timestampMs int64, values map[mqtmodels.Metric]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	for metric, value := range values {
		key := mqtmodels.SeriesKey(chipID, metric)
		s.series[key] = append(s.series[key], Point{TimestampMs: timestampMs, Value: value})
	}
	return nil
}

func (s *SeriesRepository) Ping(_ context.Context) error {
	return nil
}

// Exists reports whether a series key has been created
func (s *SeriesRepository) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.series[key]
	return ok
}

// Points returns a copy of the points stored under key
func (s *SeriesRepository) Points(key string) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Point, len(s.series[key]))
	copy(out, s.series[key])
	return out
}
