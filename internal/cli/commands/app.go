package commands

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/docref/internal/cli/config"
	"github.com/conduit-lang/docref/internal/orm/crud"
	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/docstore/memory"
	"github.com/conduit-lang/docref/internal/orm/docstore/mongostore"
	"github.com/conduit-lang/docref/internal/orm/docstore/redisstore"
	"github.com/conduit-lang/docref/internal/orm/docstore/sqlstore"
	"github.com/conduit-lang/docref/internal/orm/hooks"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// app holds everything a command needs to read and write documents
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *schema.Registry
	store    docstore.Store
	queue    *hooks.AsyncQueue
	manager  *crud.Manager
}

// loadConfig loads the configuration named by --config, or docref.yml
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openApp loads the configuration, builds the registry, opens the store and wires the
// entity layer
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	registry, err := config.BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, registry, logger)
	if err != nil {
		return nil, err
	}

	queue := hooks.NewAsyncQueue(cfg.Hooks.Workers, logger.Named("hooks"))
	queue.Start()
	executor := hooks.NewExecutor(queue, logger.Named("hooks"))
	if cfg.Hooks.LogWrites {
		registerWriteLog(executor, logger.Named("writes"))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		queue:    queue,
		manager:  crud.NewManager(registry, store, crud.WithHooks(executor), crud.WithLogger(logger)),
	}, nil
}

// Close drains queued hooks and releases the store
func (a *app) Close() {
	a.queue.Shutdown()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	a.logger.Sync()
}

// newLogger builds a production or development zap logger at the configured level
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}

// openStore opens the document store selected by store.driver
func openStore(ctx context.Context, cfg *config.Config, registry *schema.Registry, logger *zap.Logger) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		store := memory.New()
		if cfg.Store.Seed != "" {
			f, err := os.Open(cfg.Store.Seed)
			if err != nil {
				return nil, fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()
			if err := store.Load(f, cfg.IDFields()); err != nil {
				return nil, err
			}
		}
		return store, nil

	case "postgres", "pgx", "sqlite3", "mysql":
		store, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, sqlstore.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := sqlstore.Migrate(store.DB(), store.Dialect()); err != nil {
				store.Close()
				return nil, err
			}
		}
		return store, nil

	case "redis":
		idField, err := sharedIDField(registry)
		if err != nil {
			return nil, err
		}
		return redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
			IDField:  idField,
		}, logger)

	case "mongo":
		idField, err := sharedIDField(registry)
		if err != nil {
			return nil, err
		}
		store, err := mongostore.Open(ctx, mongostore.Config{
			URI:      cfg.Store.Mongo.URI,
			Database: cfg.Store.Mongo.Database,
			IDField:  idField,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx, registry); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}

	return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
}

// sharedIDField returns the identifier field used by every entity type. The Redis and
// MongoDB stores address documents through a single id field.
func sharedIDField(registry *schema.Registry) (string, error) {
	idField := schema.DefaultIDField
	for i, entity := range registry.Entities() {
		if i == 0 {
			idField = entity.IDField
			continue
		}
		if entity.IDField != idField {
			return "", fmt.Errorf("entity types must share one id field for this store: %s uses %s, %s uses %s",
				registry.Entities()[0].Collection, idField, entity.Collection, entity.IDField)
		}
	}
	return idField, nil
}

// registerWriteLog logs every completed write from the async queue
func registerWriteLog(executor *hooks.Executor, logger *zap.Logger) {
	for _, hookType := range []schema.HookType{schema.AfterCreate, schema.AfterUpdate, schema.AfterDelete} {
		executor.Register(hooks.AnyCollection, hookType, &hooks.Hook{
			Name:  "log_writes",
			Async: true,
			Fn: func(ctx *hooks.Context, doc docstore.Document) error {
				logger.Info("document written",
					zap.String("collection", ctx.Collection()),
					zap.Stringer("hook", ctx.HookType()),
					zap.Any("id", doc[ctx.Entity().IDField]),
				)
				return nil
			},
		})
	}
}
