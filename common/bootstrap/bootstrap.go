package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/skylark/aviary/common/cache"
	"github.com/skylark/aviary/common/config"
	"github.com/skylark/aviary/common/db"
	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/queue"
	"github.com/skylark/aviary/common/telemetry"
)

// Setup initializes all service components.
// This is the main entry point for the service.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize key-value store
	if !options.skipStore {
		switch components.Config.Database.Backend {
		case "postgres":
			components.Logger.Info("connecting to database")
			components.DB, err = db.New(ctx, components.Config, components.Logger)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to database: %w", err)
			}
			components.addCleanup(func() error {
				components.DB.Close()
				return nil
			})

			store := kv.NewPostgres(components.DB)
			if err := store.Migrate(ctx); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("failed to migrate store: %w", err)
			}
			components.Store = store

		case "memory":
			components.Logger.Info("using in-memory store")
			components.Store = kv.NewMemory()

		default:
			return nil, fmt.Errorf("unknown store backend: %s", components.Config.Database.Backend)
		}

		components.addCleanup(func() error {
			return components.Store.Close()
		})
	}

	// 4. Initialize queue
	if !options.skipQueue {
		components.Queue = queue.NewMemoryQueue(components.Logger)
		components.addCleanup(func() error {
			components.Logger.Info("closing queue")
			return components.Queue.Close()
		})
	}

	// 5. Initialize cache
	if !options.skipCache {
		switch components.Config.Cache.Backend {
		case "redis":
			components.Logger.Info("initializing redis cache")
			client := redis.NewClient(&redis.Options{
				Addr:     components.Config.RedisAddr(),
				Password: components.Config.Redis.Password,
				DB:       components.Config.Redis.DB,
			})
			components.Cache, err = cache.NewRedisCache(ctx, client, components.Logger)
			if err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
			}
		default:
			components.Cache = cache.NewMemoryCache(components.Logger)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing cache")
			return components.Cache.Close()
		})
	}

	// 6. Initialize telemetry
	if !options.skipTelemetry && components.Config.Telemetry.EnablePprof {
		components.Telemetry = telemetry.New(
			components.Config.Telemetry.PprofPort,
			components.Logger,
		)

		if err := components.Telemetry.Start(ctx); err != nil {
			// Telemetry is optional; never fail startup over it.
			components.Logger.Warn("failed to start telemetry", "error", err)
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"store", components.Config.Database.Backend,
		"cache", components.Config.Cache.Backend,
	)

	return components, nil
}
