package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
)

type SeriesRepository interface {
	// EnsureSeries creates the missing series of a chip; safe to repeat
	EnsureSeries(ctx context.Context, chipID string, metrics []mqtmodels.Metric) error

	// Append writes a single point
	Append(ctx context.Context, chipID string, metric mqtmodels.Metric, timestampMs int64, value float64) error

	// AppendBatch writes one reading, every metric at the same timestamp
	AppendBatch(ctx context.Context, chipID string, timestampMs int64, values map[mqtmodels.Metric]float64) error

	Ping(ctx context.Context) error
}
