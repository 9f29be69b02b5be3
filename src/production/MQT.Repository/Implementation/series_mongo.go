package implementation

import (
	"context"
	"fmt"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type pointDoc struct {
	Key         string    `bson:"key"`
	ChipID      string    `bson:"chip_id"`
	Metric      string    `bson:"metric"`
	Ts          time.Time `bson:"ts"`
	TimestampMs int64     `bson:"timestamp_ms"`
	Value       float64   `bson:"value"`
}

// MongoSeriesRepository keeps a series catalogue and an append-only points collection
type MongoSeriesRepository struct {
	client *mongo.Client
	series *mongo.Collection
	points *mongo.Collection
}

func NewMongoSeriesRepository(db *mongo.Database) *MongoSeriesRepository {
	return &MongoSeriesRepository{
		client: db.Client(),
		series: db.Collection("series"),
		points: db.Collection("points"),
	}
}

// EnsureIndexes creates the unique series key and the point lookup index
func (r *MongoSeriesRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := r.series.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create series index: %w", err)
	}

	if _, err := r.points.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "key", Value: 1}, {Key: "ts", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create points index: %w", err)
	}
	return nil
}

func (r *MongoSeriesRepository) EnsureSeries(ctx context.Context, chipID string, metrics []mqtmodels.Metric) error {
	now := time.Now().UTC()
	for _, metric := range metrics {
		key := mqtmodels.SeriesKey(chipID, metric)
		update := bson.M{"$setOnInsert": bson.M{
			"chip_id":    chipID,
			"metric":     string(metric),
			"created_at": now,
		}}

		_, err := r.series.UpdateOne(ctx, bson.M{"key": key}, update, options.Update().SetUpsert(true))
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("create series %s: %w", key, err)
		}
	}
	return nil
}

func (r *MongoSeriesRepository) Append(ctx context.Context, chipID string, metric mqtmodels.Metric, timestampMs int64, value float64) error {
	if _, err := r.points.InsertOne(ctx, newPointDoc(chipID, metric, timestampMs, value)); err != nil {
		return fmt.Errorf("append %s: %w", mqtmodels.SeriesKey(chipID, metric), err)
	}
	return nil
}

func (r *MongoSeriesRepository) AppendBatch(ctx context.Context, chipID string, timestampMs int64, values map[mqtmodels.Metric]float64) error {
	if len(values) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(values))
	for _, metric := range sortedMetrics(values) {
		docs = append(docs, newPointDoc(chipID, metric, timestampMs, values[metric]))
	}
	if _, err := r.points.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("append reading for %s: %w", chipID, err)
	}
	return nil
}

func (r *MongoSeriesRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoSeriesRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func newPointDoc(chipID string, metric mqtmodels.Metric, timestampMs int64, value float64) pointDoc {
	return pointDoc{
		Key:         mqtmodels.SeriesKey(chipID, metric),
		ChipID:      chipID,
		Metric:      string(metric),
		Ts:          time.UnixMilli(timestampMs).UTC(),
		TimestampMs: timestampMs,
		Value:       value,
	}
}
