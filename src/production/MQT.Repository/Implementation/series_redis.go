package implementation

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
)

// RedisSeriesRepository stores one RedisTimeSeries key per chip metric
type RedisSeriesRepository struct {
	client *redis.Client
}

func NewRedisSeriesRepository(client *redis.Client) *RedisSeriesRepository {
	return &RedisSeriesRepository{client: client}
}

func (r *RedisSeriesRepository) EnsureSeries(ctx context.Context, chipID string, metrics []mqtmodels.Metric) error {
	for _, metric := range metrics {
		key := mqtmodels.SeriesKey(chipID, metric)

		n, err := r.client.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("check series %s: %w", key, err)
		}
		if n > 0 {
			continue
		}

		// A concurrent request may have created it between EXISTS and TS.CREATE
		if err := r.client.TSCreate(ctx, key).Err(); err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("create series %s: %w", key, err)
		}
	}
	return nil
}

func (r *RedisSeriesRepository) Append(ctx context.Context, chipID string, metric mqtmodels.Metric, timestampMs int64, value float64) error {
	key := mqtmodels.SeriesKey(chipID, metric)
	if err := r.client.TSAdd(ctx, key, timestampMs, value).Err(); err != nil {
		return fmt.Errorf("append %s: %w", key, err)
	}
	return nil
}

// AppendBatch writes the whole reading in one MULTI/EXEC round trip
func (r *RedisSeriesRepository) AppendBatch(ctx context.Context, chipID string, timestampMs int64, values map[mqtmodels.Metric]float64) error {
	if len(values) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, metric := range sortedMetrics(values) {
		pipe.TSAdd(ctx, mqtmodels.SeriesKey(chipID, metric), timestampMs, values[metric])
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append reading for %s: %w", chipID, err)
	}
	return nil
}

func (r *RedisSeriesRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSeriesRepository) Close() error {
	return r.client.Close()
}
