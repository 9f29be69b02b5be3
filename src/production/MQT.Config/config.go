package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-this-secret-in-production"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Device registry configuration
	Database DatabaseConfig `json:"database"`

	// Time-series sink configuration
	Series SeriesConfig `json:"series"`

	// MQTT relay configuration
	MQTT MQTTConfig `json:"mqtt"`

	// Credential and admission configuration
	Auth AuthConfig `json:"auth"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port                  string        `json:"port"`
	ReadTimeout           time.Duration `json:"read_timeout"`
	WriteTimeout          time.Duration `json:"write_timeout"`
	IdleTimeout           time.Duration `json:"idle_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout"`
	MaxConcurrentRequests int64         `json:"max_concurrent_requests"`
	TLSCertFile           string        `json:"tls_cert_file"`
	TLSKeyFile            string        `json:"tls_key_file"`
}

// DatabaseConfig holds registry database configuration
type DatabaseConfig struct {
	Driver     string `json:"driver"` // postgres, sqlite or memory
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	DBName     string `json:"db_name"`
	SSLMode    string `json:"ssl_mode"`
	MaxConns   int    `json:"max_conns"`
	MinConns   int    `json:"min_conns"`
	SQLitePath string `json:"sqlite_path"`
}

// SeriesConfig holds time-series store configuration
type SeriesConfig struct {
	Backend       string `json:"backend"` // redis, mongo or memory
	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	RedisPoolSize int    `json:"redis_pool_size"`
	MongoURI      string `json:"mongo_uri"`
	MongoDB       string `json:"mongo_db"`
}

// MQTTConfig holds MQTT relay configuration
type MQTTConfig struct {
	Enabled     bool          `json:"enabled"`
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	ClientID    string        `json:"client_id"`
	TopicPrefix string        `json:"topic_prefix"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
	PublishWait time.Duration `json:"publish_wait"`
}

// AuthConfig holds credential and admission configuration
type AuthConfig struct {
	JWTSecretKey    string        `json:"jwt_secret_key"`
	FreshnessWindow time.Duration `json:"freshness_window"`
	MaxClockSkew    time.Duration `json:"max_clock_skew"`
	ChipIDPolicy    string        `json:"chip_id_policy"` // exact15 or min11
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout, stderr, or file path
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// Load loads configuration from environment variables with fallback defaults.
// envFiles are passed to godotenv; a missing file is not an error.
func Load(envFiles ...string) (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load(envFiles...)

	config := &Config{
		Server: ServerConfig{
			Port:                  getEnv("PORT", "5500"),
			ReadTimeout:           getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:          getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:           getDuration("IDLE_TIMEOUT", 5*time.Second),
			RequestTimeout:        getDuration("REQUEST_TIMEOUT", 30*time.Second),
			MaxConcurrentRequests: int64(getInt("MAX_CONCURRENT_REQUESTS", 64)),
			TLSCertFile:           getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:            getEnv("TLS_KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("REGISTRY_DRIVER", "postgres")),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getInt("POSTGRES_PORT", 5432),
			User:       getEnv("POSTGRES_USER", ""),
			Password:   getEnv("POSTGRES_PASSWORD", ""),
			DBName:     getEnv("POSTGRES_DB", "producers"),
			SSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:   getInt("POSTGRES_MAX_CONNS", 5),
			MinConns:   getInt("POSTGRES_MIN_CONNS", 2),
			SQLitePath: getEnv("SQLITE_PATH", "./data/producers.db"),
		},
		Series: SeriesConfig{
			Backend:       strings.ToLower(getEnv("SERIES_BACKEND", "redis")),
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getInt("REDIS_PORT", 6379),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getInt("REDIS_DB", 0),
			RedisPoolSize: getInt("REDIS_POOL_SIZE", 10),
			MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDB:       getEnv("MONGODB_DB", "meteo"),
		},
		MQTT: MQTTConfig{
			Enabled:     getBool("MQTT_ENABLED", false),
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "meteo-gateway"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "sensors"),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
			PublishWait: getDuration("MQTT_PUBLISH_WAIT", 2*time.Second),
		},
		Auth: AuthConfig{
			JWTSecretKey:    getEnv("JWT_SECRET_KEY", defaultJWTSecret),
			FreshnessWindow: getDuration("TOKEN_FRESHNESS_WINDOW", 24*time.Hour),
			MaxClockSkew:    getDuration("TOKEN_MAX_CLOCK_SKEW", 5*time.Minute),
			ChipIDPolicy:    strings.ToLower(getEnv("CHIP_ID_POLICY", "exact15")),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "X-Request-ID"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.User == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported REGISTRY_DRIVER %q", c.Database.Driver)
	}

	switch c.Series.Backend {
	case "redis", "mongo", "memory":
	default:
		return fmt.Errorf("unsupported SERIES_BACKEND %q", c.Series.Backend)
	}

	switch c.Auth.ChipIDPolicy {
	case "exact15", "min11":
	default:
		return fmt.Errorf("unsupported CHIP_ID_POLICY %q (expected exact15 or min11)", c.Auth.ChipIDPolicy)
	}

	if c.Auth.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Auth.JWTSecretKey == defaultJWTSecret {
		log.Println("WARNING: Using default JWT secret key. Change JWT_SECRET_KEY in production!")
	}
	if c.Auth.FreshnessWindow <= 0 {
		return fmt.Errorf("TOKEN_FRESHNESS_WINDOW must be positive")
	}
	if c.Auth.MaxClockSkew < 0 {
		return fmt.Errorf("TOKEN_MAX_CLOCK_SKEW must not be negative")
	}
	if c.Server.MaxConcurrentRequests < 1 {
		return fmt.Errorf("MAX_CONCURRENT_REQUESTS must be at least 1")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// TLSEnabled reports whether the server terminates TLS itself
func (c *Config) TLSEnabled() bool {
	return c.Server.TLSCertFile != "" && c.Server.TLSKeyFile != ""
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return fmt.Sprintf(
			"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
			c.Database.SQLitePath,
		)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetRedisAddr returns the redis host:port pair
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Series.RedisHost, c.Series.RedisPort)
}

// BrokerURL returns the MQTT broker URL
func (c MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if c.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.BrokerHost, c.BrokerPort)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
