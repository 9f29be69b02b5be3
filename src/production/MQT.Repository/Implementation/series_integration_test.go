//go:build integration

package implementation

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Run with: TEST_REDIS_ADDR=localhost:6379 TEST_MONGODB_URI=mongodb://localhost:27017 go test -tags integration ./...
// Redis must have the TimeSeries module loaded (redis-stack).

const concurrentCreators = 8

// testChipID gives every run its own series keys
func testChipID() string {
	return fmt.Sprintf("%015d", uuid.New().ID())
}

func TestRedisSeries_Integration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	repo := NewRedisSeriesRepository(client)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	chipID := testChipID()
	metrics := []mqtmodels.Metric{mqtmodels.MetricTemperature, mqtmodels.MetricHumidity}
	defer func() {
		for _, m := range metrics {
			client.Del(context.Background(), mqtmodels.SeriesKey(chipID, m))
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, concurrentCreators)
	for i := 0; i < concurrentCreators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.EnsureSeries(ctx, chipID, metrics)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent EnsureSeries: %v", err)
		}
	}

	values := map[mqtmodels.Metric]float64{
		mqtmodels.MetricTemperature: 21.5,
		mqtmodels.MetricHumidity:    40,
	}
	if err := repo.AppendBatch(ctx, chipID, 1700000000000, values); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	points, err := client.TSRange(ctx, mqtmodels.SeriesKey(chipID, mqtmodels.MetricTemperature), 0, 1800000000000).Result()
	if err != nil {
		t.Fatalf("TS.RANGE: %v", err)
	}
	if len(points) != 1 || points[0].Timestamp != 1700000000000 || points[0].Value != 21.5 {
		t.Fatalf("points = %+v", points)
	}
}

func TestMongoSeries_Integration(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("mongo.Connect: %v", err)
	}
	db := client.Database("meteo_it_" + uuid.NewString()[:8])
	repo := NewMongoSeriesRepository(db)
	defer func() {
		db.Drop(context.Background())
		repo.Close(context.Background())
	}()

	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}

	// Concurrent upserts on the unique key race; the losers see E11000
	chipID := testChipID()
	metrics := []mqtmodels.Metric{mqtmodels.MetricWindSpeed, mqtmodels.MetricDust}
	var wg sync.WaitGroup
	errs := make(chan error, concurrentCreators)
	for i := 0; i < concurrentCreators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.EnsureSeries(ctx, chipID, metrics)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent EnsureSeries: %v", err)
		}
	}

	n, err := db.Collection("series").CountDocuments(ctx, bson.M{"chip_id": chipID})
	if err != nil {
		t.Fatalf("count series: %v", err)
	}
	if n != int64(len(metrics)) {
		t.Fatalf("series documents = %d, want %d", n, len(metrics))
	}

	values := map[mqtmodels.Metric]float64{mqtmodels.MetricWindSpeed: 3.2, mqtmodels.MetricDust: 12}
	if err := repo.AppendBatch(ctx, chipID, 1700000000000, values); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	n, err = db.Collection("points").CountDocuments(ctx, bson.M{"chip_id": chipID})
	if err != nil {
		t.Fatalf("count points: %v", err)
	}
	if n != 2 {
		t.Fatalf("points = %d, want 2", n)
	}
}
