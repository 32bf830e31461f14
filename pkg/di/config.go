package di

import (
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-scopecache/batch"
	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/goliatone/go-scopecache/pkg/logging/logruslog"
	"github.com/goliatone/go-scopecache/pkg/logging/zaplog"
	"github.com/goliatone/go-scopecache/pkg/logging/zerologlog"
	"github.com/goliatone/go-scopecache/storage"
)

// Log backends accepted by LogConfig.Backend.
const (
	LogNone    = "none"
	LogZap     = "zap"
	LogLogrus  = "logrus"
	LogZerolog = "zerolog"
)

// Config is the top level configuration of a Container.
type Config struct {
	Cache        cache.Config   `mapstructure:"cache"`
	Storage      storage.Config `mapstructure:"storage"`
	MaxGroupSize int            `mapstructure:"max_group_size"`
	Log          LogConfig      `mapstructure:"log"`
	Metrics      MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Backend string `mapstructure:"backend"`
	Level   string `mapstructure:"level"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// DefaultConfig returns an in-memory sqlite setup with logging and metrics
// turned off.
func DefaultConfig() Config {
	return Config{
		Cache:        cache.DefaultConfig(),
		Storage:      storage.DefaultConfig(),
		MaxGroupSize: batch.DefaultMaxGroupSize,
		Log: LogConfig{
			Backend: LogNone,
			Level:   "info",
		},
		Metrics: MetricsConfig{
			Namespace: "scopecache",
		},
	}
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Cache),
		validation.Field(&c.Storage),
		validation.Field(&c.MaxGroupSize, validation.Min(0)),
		validation.Field(&c.Log),
		validation.Field(&c.Metrics),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid container configuration")
	}
	return nil
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.In(LogNone, LogZap, LogLogrus, LogZerolog)),
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
	)
}

func (c MetricsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Namespace, validation.When(c.Enabled, validation.Required)),
	)
}

// LoadConfig reads the configuration from path (optional) and from the
// environment. Keys map to variables as PREFIX_SECTION_KEY, e.g.
// SCOPECACHE_CACHE_BACKEND.
func LoadConfig(path, envPrefix string) (Config, error) {
	v := viper.New()
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryOperation, "read configuration file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryOperation, "decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("cache.num_shards", d.Cache.NumShards)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.eviction_percentage", d.Cache.EvictionPercentage)
	v.SetDefault("cache.eviction_interval", d.Cache.EvictionInterval)
	v.SetDefault("cache.ristretto.num_counters", d.Cache.Ristretto.NumCounters)
	v.SetDefault("cache.ristretto.max_cost", d.Cache.Ristretto.MaxCost)
	v.SetDefault("cache.ristretto.buffer_items", d.Cache.Ristretto.BufferItems)
	v.SetDefault("cache.ristretto.metrics", d.Cache.Ristretto.Metrics)
	v.SetDefault("cache.bigcache.shards", d.Cache.BigCache.Shards)
	v.SetDefault("cache.bigcache.clean_window", d.Cache.BigCache.CleanWindow)
	v.SetDefault("cache.bigcache.max_entries_in_window", d.Cache.BigCache.MaxEntriesInWindow)
	v.SetDefault("cache.bigcache.max_entry_size", d.Cache.BigCache.MaxEntrySize)
	v.SetDefault("cache.bigcache.hard_max_cache_size_mb", d.Cache.BigCache.HardMaxCacheSizeMB)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("storage.max_open_conns", d.Storage.MaxOpenConns)
	v.SetDefault("storage.max_idle_conns", d.Storage.MaxIdleConns)
	v.SetDefault("storage.conn_max_lifetime", d.Storage.ConnMaxLifetime)

	v.SetDefault("max_group_size", d.MaxGroupSize)
	v.SetDefault("log.backend", d.Log.Backend)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// NewLogger builds the logger selected by cfg. Output goes to stderr.
func NewLogger(cfg LogConfig) (logging.Logger, error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}

	switch cfg.Backend {
	case "", LogNone:
		return logging.NopLogger{}, nil
	case LogZap:
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid log level")
		}
		zc := zap.NewProductionConfig()
		zc.Level = lvl
		l, err := zc.Build()
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "build zap logger")
		}
		return zaplog.New(l), nil
	case LogLogrus:
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid log level")
		}
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{})
		return logruslog.New(l), nil
	case LogZerolog:
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid log level")
		}
		return zerologlog.New(zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()), nil
	}
	return nil, goerrors.New("unknown log backend "+cfg.Backend, goerrors.CategoryValidation).
		WithTextCode("UNKNOWN_LOG_BACKEND")
}
