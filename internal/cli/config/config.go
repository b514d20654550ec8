package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Config represents the docref configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Hooks    HooksConfig    `mapstructure:"hooks"`
	Entities []EntityConfig `mapstructure:"entities"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	// Driver is one of memory, postgres, pgx, sqlite3, mysql, redis or mongo
	Driver      string      `mapstructure:"driver"`
	DSN         string      `mapstructure:"dsn"`
	Seed        string      `mapstructure:"seed"`
	// AutoMigrate provisions the documents table when a SQL store is opened
	AutoMigrate bool        `mapstructure:"auto_migrate"`
	Redis       RedisConfig `mapstructure:"redis"`
	Mongo       MongoConfig `mapstructure:"mongo"`
}

// RedisConfig represents Redis store configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// MongoConfig represents MongoDB store configuration
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	Host      string `mapstructure:"host"`
	APIPrefix string `mapstructure:"api_prefix"`
}

// HooksConfig configures write notifications
type HooksConfig struct {
	Workers   int  `mapstructure:"workers"`
	// LogWrites logs every stored write from an async after hook
	LogWrites bool `mapstructure:"log_writes"`
}

// EntityConfig declares an entity type and its relations
type EntityConfig struct {
	Collection string           `mapstructure:"collection"`
	IDField    string           `mapstructure:"id_field"`
	Unique     []string         `mapstructure:"unique"`
	Index      []string         `mapstructure:"index"`
	Relations  []RelationConfig `mapstructure:"relations"`
}

// RelationConfig declares one relation of an entity type
type RelationConfig struct {
	SourceKey    string `mapstructure:"source_key"`
	Target       string `mapstructure:"target"`
	TargetKey    string `mapstructure:"target_key"`
	Cardinality  string `mapstructure:"cardinality"`
	Check        *bool  `mapstructure:"check"`
	PopulatedKey string `mapstructure:"populated_key"`
}

var validDrivers = map[string]bool{
	"memory":   true,
	"postgres": true,
	"pgx":      true,
	"sqlite3":  true,
	"mysql":    true,
	"redis":    true,
	"mongo":    true,
}

// Load loads the configuration from path, or from docref.yml in the working directory
// when path is empty. DOCREF_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.seed", "")
	v.SetDefault("store.auto_migrate", false)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "docref:")
	v.SetDefault("store.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo.database", "docref")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.api_prefix", "")
	v.SetDefault("hooks.workers", 4)
	v.SetDefault("hooks.log_writes", false)

	// Set config name and paths
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docref")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix("DOCREF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Address returns the host:port the server listens on
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IDFields maps every configured collection to its identifier field
func (c *Config) IDFields() map[string]string {
	fields := make(map[string]string, len(c.Entities))
	for _, entity := range c.Entities {
		if entity.IDField != "" {
			fields[entity.Collection] = entity.IDField
		}
	}
	return fields
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	// Validate API prefix format
	if cfg.Server.APIPrefix != "" {
		if !strings.HasPrefix(cfg.Server.APIPrefix, "/") {
			return fmt.Errorf("server.api_prefix must start with '/', got: %s", cfg.Server.APIPrefix)
		}
		if strings.HasSuffix(cfg.Server.APIPrefix, "/") {
			return fmt.Errorf("server.api_prefix must not end with '/', got: %s", cfg.Server.APIPrefix)
		}
	}

	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("store.driver must be one of memory, postgres, pgx, sqlite3, mysql, redis, mongo, got: %s", cfg.Store.Driver)
	}
	switch cfg.Store.Driver {
	case "postgres", "pgx", "sqlite3", "mysql":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", cfg.Store.Driver)
		}
	}

	if cfg.Hooks.Workers < 0 {
		return fmt.Errorf("hooks.workers must not be negative, got: %d", cfg.Hooks.Workers)
	}

	seen := make(map[string]bool, len(cfg.Entities))
	for i, entity := range cfg.Entities {
		if entity.Collection == "" {
			return fmt.Errorf("entities[%d].collection is required", i)
		}
		if seen[entity.Collection] {
			return fmt.Errorf("entities[%d]: collection %s is declared twice", i, entity.Collection)
		}
		seen[entity.Collection] = true

		for j, rel := range entity.Relations {
			if rel.SourceKey == "" || rel.Target == "" {
				return fmt.Errorf("entities[%d].relations[%d]: source_key and target are required", i, j)
			}
			if _, err := schema.ParseCardinality(rel.Cardinality); err != nil {
				return fmt.Errorf("entities[%d].relations[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}
