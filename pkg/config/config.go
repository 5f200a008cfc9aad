// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// store layout, the build pipeline and the optional infrastructure
// (Postgres catalog, Kafka build events, Redis record cache, metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Build    BuildConfig    `yaml:"build"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StoreConfig describes where the finished store lives and how the Work
// kind is sharded.
type StoreConfig struct {
	Dir         string `yaml:"dir"`
	Extension   string `yaml:"extension"`
	WorkBuckets int    `yaml:"workBuckets"`
}

// BuildConfig controls the extraction pipeline.
type BuildConfig struct {
	SnapshotDir     string   `yaml:"snapshotDir"`
	ProvisionalDir  string   `yaml:"provisionalDir"`
	Workers         int      `yaml:"workers"`
	MaxLineBytes    int      `yaml:"maxLineBytes"`
	KeepProvisional bool     `yaml:"keepProvisional"`
	Entities        []string `yaml:"entities"`
}

// PostgresConfig holds PostgreSQL connection parameters for the build catalog.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	BuildEvents string `yaml:"buildEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must not be empty")
	}
	if c.Store.Extension == "" {
		return fmt.Errorf("store.extension must not be empty")
	}
	if c.Store.WorkBuckets <= 0 {
		return fmt.Errorf("store.workBuckets must be positive, got %d", c.Store.WorkBuckets)
	}
	if c.Build.Workers <= 0 {
		return fmt.Errorf("build.workers must be positive, got %d", c.Build.Workers)
	}
	if c.Build.ProvisionalDir == "" {
		return fmt.Errorf("build.provisionalDir must not be empty")
	}
	if c.Build.MaxLineBytes <= 0 {
		return fmt.Errorf("build.maxLineBytes must be positive, got %d", c.Build.MaxLineBytes)
	}
	for _, e := range c.Build.Entities {
		switch e {
		case "work", "concept", "venue":
		default:
			return fmt.Errorf("build.entities: unknown entity %q", e)
		}
	}
	return nil
}

// defaultConfig returns a Config with defaults matching the reference build.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:         "data/store",
			Extension:   "wjf",
			WorkBuckets: 64,
		},
		Build: BuildConfig{
			SnapshotDir:    "data/openalex-snapshot/data",
			ProvisionalDir: "data/provisional",
			Workers:        16,
			MaxLineBytes:   64 << 20,
			Entities:       []string{"work", "concept", "venue"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "graphstore",
			User:            "graphstore",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "graphstore-events",
			Topics: KafkaTopics{
				BuildEvents: "graphstore.build-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads AGS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGS_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("AGS_STORE_WORK_BUCKETS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.WorkBuckets = n
		}
	}
	if v := os.Getenv("AGS_BUILD_SNAPSHOT_DIR"); v != "" {
		cfg.Build.SnapshotDir = v
	}
	if v := os.Getenv("AGS_BUILD_PROVISIONAL_DIR"); v != "" {
		cfg.Build.ProvisionalDir = v
	}
	if v := os.Getenv("AGS_BUILD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Build.Workers = n
		}
	}
	if v := os.Getenv("AGS_BUILD_ENTITIES"); v != "" {
		cfg.Build.Entities = strings.Split(v, ",")
	}
	if v := os.Getenv("AGS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("AGS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("AGS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("AGS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("AGS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AGS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AGS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	overrideBool("AGS_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	overrideBool("AGS_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	overrideBool("AGS_REDIS_ENABLED", &cfg.Redis.Enabled)
	overrideBool("AGS_METRICS_ENABLED", &cfg.Metrics.Enabled)
	if v := os.Getenv("AGS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func overrideBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
