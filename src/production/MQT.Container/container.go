package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/health"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/implementation/admission"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/implementation/credential"
	config "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
	api_models "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models/api"
	mqtrelay "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Relay"
	implementation "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Repository/Interfaces"
	memory "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Repository/Memory"
)

const connectTimeout = 20 * time.Second

// Container owns the process-wide resources: the registry pool, the series
// store client and the relay. Everything is built once by Initialize and
// released by Shutdown.
type Container struct {
	config *config.Config
	logger *logger.Logger

	registry  interfaces.RegistryRepository
	series    interfaces.SeriesRepository
	publisher *mqtrelay.Publisher

	healthChecker *health.HealthChecker
	admission     *admission.Service

	// Mutex for thread-safe access
	mu          sync.Mutex
	initialized bool

	// Cleanup functions
	cleanupFuncs []func() error
}

// NewContainer loads configuration from the given dotenv files and the
// environment, then sets up logging.
func NewContainer(envFiles ...string) (*Container, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.NewLogger(&cfg.Logging)
	c := NewContainerWithConfig(cfg, log)
	c.addCleanup(log.Close)
	return c, nil
}

// NewContainerWithConfig creates a container around an existing configuration
func NewContainerWithConfig(cfg *config.Config, log *logger.Logger) *Container {
	return &Container{
		config: cfg,
		logger: log,
	}
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// Initialize connects every backing store, creates the registry schema and
// assembles the admission service. It is safe to call more than once.
func (c *Container) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}

	if err := c.initRegistry(ctx); err != nil {
		return err
	}
	if err := c.initSeries(ctx); err != nil {
		return err
	}
	if err := c.initRelay(ctx); err != nil {
		return err
	}

	policy, err := mqtmodels.ChipIDPolicyByName(c.config.Auth.ChipIDPolicy)
	if err != nil {
		return err
	}
	codec, err := credential.NewCodec(api_models.Config{SecretKey: c.config.Auth.JWTSecretKey})
	if err != nil {
		return fmt.Errorf("failed to create credential codec: %w", err)
	}

	var opts []admission.Option
	if c.publisher != nil {
		opts = append(opts, admission.WithPublisher(c.publisher))
	}
	c.admission = admission.NewService(c.registry, c.series, codec, admission.Config{
		Policy:          policy,
		FreshnessWindow: c.config.Auth.FreshnessWindow,
		MaxClockSkew:    c.config.Auth.MaxClockSkew,
	}, c.logger, opts...)

	checks := map[string]health.Pinger{
		"registry": c.registry,
		"series":   c.series,
	}
	if c.publisher != nil {
		checks["relay"] = c.publisher
	}
	c.healthChecker = health.NewHealthChecker(checks)

	c.initialized = true
	c.logger.WithFields(map[string]interface{}{
		"registry": c.config.Database.Driver,
		"series":   c.config.Series.Backend,
		"relay":    c.config.MQTT.Enabled,
		"policy":   policy.Name,
	}).Info("Container initialized")
	return nil
}

func (c *Container) initRegistry(ctx context.Context) error {
	if c.config.Database.Driver == "memory" {
		c.logger.Warn("Using in-memory registry; registrations are lost on restart")
		c.registry = memory.NewRegistryRepository()
		return nil
	}

	db, dialect, err := health.ConnectRegistryWithTimeout(c.config, connectTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to registry database: %w", err)
	}
	c.addCleanup(db.Close)

	if err := health.NewDatabaseManager(db).CreateTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	c.registry = implementation.NewSQLRegistryRepository(db, dialect)
	c.logger.WithField("driver", c.config.Database.Driver).Info("Registry database initialized successfully")
	return nil
}

func (c *Container) initSeries(ctx context.Context) error {
	switch c.config.Series.Backend {
	case "redis":
		client, err := health.ConnectRedisWithTimeout(c.config, connectTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		repo := implementation.NewRedisSeriesRepository(client)
		c.addCleanup(repo.Close)
		c.series = repo

	case "mongo":
		client, err := health.ConnectMongoWithTimeout(c.config, connectTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		repo := implementation.NewMongoSeriesRepository(client.Database(c.config.Series.MongoDB))
		c.addCleanup(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return repo.Close(ctx)
		})
		if err := repo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create series indexes: %w", err)
		}
		c.series = repo

	default:
		c.logger.Warn("Using in-memory series store; readings are lost on restart")
		c.series = memory.NewSeriesRepository()
	}
	return nil
}

func (c *Container) initRelay(ctx context.Context) error {
	if !c.config.MQTT.Enabled {
		return nil
	}
	publisher := mqtrelay.New(c.config.MQTT, c.logger)
	if err := publisher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mqtt relay: %w", err)
	}
	c.publisher = publisher
	c.addCleanup(func() error {
		publisher.Stop()
		return nil
	})
	return nil
}

// GetAdmissionService returns the admission service built by Initialize
func (c *Container) GetAdmissionService() (*admission.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil, fmt.Errorf("container is not initialized")
	}
	return c.admission, nil
}

// GetHealthChecker returns the health checker built by Initialize
func (c *Container) GetHealthChecker() (*health.HealthChecker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil, fmt.Errorf("container is not initialized")
	}
	return c.healthChecker, nil
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.initialized = false
	c.mu.Unlock()

	// Execute cleanup functions in reverse order. The first registered
	// function closes the log file, so the last message goes out before it.
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 {
			c.logger.Info("Container shutdown complete")
		}
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}
	if len(funcs) == 0 {
		c.logger.Info("Container shutdown complete")
	}
	return nil
}

// addCleanup registers a cleanup function; callers hold c.mu
func (c *Container) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
