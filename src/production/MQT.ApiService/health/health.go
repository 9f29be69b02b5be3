package health

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	config "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Config"
	implementation "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Repository/Implementation"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	_ "modernc.org/sqlite"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Pinger is anything whose reachability can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker provides readiness checks over the backing stores
type HealthChecker struct {
	checks map[string]Pinger
}

// NewHealthChecker creates a new health checker. Nil pingers are skipped.
func NewHealthChecker(checks map[string]Pinger) *HealthChecker {
	h := &HealthChecker{checks: make(map[string]Pinger, len(checks))}
	for name, p := range checks {
		if p != nil {
			h.checks[name] = p
		}
	}
	return h
}

// CheckReadiness pings every store and returns the overall status plus the
// per-store result ("ok" or the error text).
func (h *HealthChecker) CheckReadiness(ctx context.Context) (string, map[string]string) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			results[name] = err.Error()
			overall = StatusDegraded
			continue
		}
		results[name] = StatusOK
	}
	return overall, results
}

// DatabaseManager handles registry database operations
type DatabaseManager struct {
	db *sql.DB
}

// NewDatabaseManager creates a new database manager
func NewDatabaseManager(db *sql.DB) *DatabaseManager {
	return &DatabaseManager{db: db}
}

// CreateTables creates the registry tables if they don't exist
func (dm *DatabaseManager) CreateTables(ctx context.Context) error {
	return implementation.CreateRegistryTables(ctx, dm.db)
}

// Close closes the database connection
func (dm *DatabaseManager) Close() error {
	if dm.db != nil {
		return dm.db.Close()
	}
	return nil
}

// ConnectRegistryWithTimeout opens the registry database selected by
// REGISTRY_DRIVER and returns it with its placeholder dialect.
func ConnectRegistryWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, implementation.Dialect, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var (
		driverName string
		dialect    implementation.Dialect
	)
	switch cfg.Database.Driver {
	case "postgres":
		driverName, dialect = "postgres", implementation.DialectPostgres
	case "sqlite":
		driverName, dialect = "sqlite", implementation.DialectSQLite
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, "", fmt.Errorf("unable to create SQLite directory: %w", err)
			}
		}
	default:
		return nil, "", fmt.Errorf("registry driver %q has no SQL connection", cfg.Database.Driver)
	}

	db, err := sql.Open(driverName, cfg.GetDatabaseDSN())
	if err != nil {
		return nil, "", fmt.Errorf("unable to open %s connection: %w", driverName, err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("unable to ping %s: %w", driverName, err)
	}

	// Set connection pool settings
	if dialect == implementation.DialectSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.Database.MaxConns)
		db.SetMaxIdleConns(cfg.Database.MinConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, dialect, nil
}

// ConnectRedisWithTimeout creates a Redis client and checks it answers PING
func ConnectRedisWithTimeout(cfg *config.Config, timeout time.Duration) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Series.RedisPassword,
		DB:       cfg.Series.RedisDB,
		PoolSize: cfg.Series.RedisPoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping Redis: %w", err)
	}

	return client, nil
}

// ConnectMongoWithTimeout creates a MongoDB connection with a timeout context
func ConnectMongoWithTimeout(cfg *config.Config, timeout time.Duration) (*mongo.Client, error) {
	if cfg.Series.MongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.Series.MongoURI)
	if clientOptions.TLSConfig != nil {
		clientOptions.TLSConfig.MinVersion = tls.VersionTLS12
	}
	clientOptions.SetServerSelectionTimeout(timeout)
	clientOptions.SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}

	// Test the connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
	}

	return client, nil
}
