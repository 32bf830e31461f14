package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-scopecache/pkg/logging"
)

// Backend names accepted by Config.Backend.
const (
	BackendSturdyc   = "sturdyc"
	BackendRistretto = "ristretto"
	BackendBigCache  = "bigcache"
)

// Config holds the configuration for the shared byte store behind the
// isolated caches.
type Config struct {
	// Backend selects the store implementation. Empty means sturdyc.
	Backend string

	// Capacity defines the maximum number of entries that the sturdyc store can hold.
	Capacity int

	// NumShards determines the number of sturdyc shards for concurrent access.
	NumShards int

	// TTL is the default lifetime of an entry. An expired entry is a miss,
	// never an incorrect hit, so this only bounds memory.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries sturdyc evicts
	// when it reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often sturdyc checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration

	Ristretto RistrettoConfig
	BigCache  BigCacheConfig

	// Logger receives writes the store refused. Nil disables it.
	Logger logging.Logger
}

// RistrettoConfig mirrors the ristretto admission settings.
type RistrettoConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

// BigCacheConfig mirrors the bigcache sizing settings. BigCache uses TTL as
// its global life window.
type BigCacheConfig struct {
	Shards             int
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendSturdyc,
		Capacity:           100000,
		NumShards:          256,
		TTL:                12 * time.Hour,
		EvictionPercentage: 10,
		Ristretto: RistrettoConfig{
			NumCounters: 1e6,
			MaxCost:     1 << 28,
			BufferItems: 64,
		},
		BigCache: BigCacheConfig{
			Shards:             64,
			MaxEntriesInWindow: 10000,
			MaxEntrySize:       256,
		},
	}
}

// Validate checks if the configuration values are valid for the selected backend.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.In(BackendSturdyc, BackendRistretto, BackendBigCache)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return invalid(err)
	}

	switch c.backend() {
	case BackendSturdyc:
		err = validation.ValidateStruct(&c,
			validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
			validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
			validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		)
	case BackendRistretto:
		r := c.Ristretto
		err = validation.ValidateStruct(&r,
			validation.Field(&r.NumCounters, validation.Required, validation.Min(int64(1))),
			validation.Field(&r.MaxCost, validation.Required, validation.Min(int64(1))),
			validation.Field(&r.BufferItems, validation.Required, validation.Min(int64(1))),
		)
	case BackendBigCache:
		b := c.BigCache
		err = validation.ValidateStruct(&b,
			validation.Field(&b.Shards, validation.Min(0)),
			validation.Field(&b.MaxEntrySize, validation.Min(0)),
			validation.Field(&b.HardMaxCacheSizeMB, validation.Min(0)),
		)
		if err == nil && b.Shards > 0 && b.Shards&(b.Shards-1) != 0 {
			err = validation.Errors{"Shards": validation.NewError("validation_power_of_two", "must be a power of two")}
		}
	}
	if err != nil {
		return invalid(err)
	}
	return nil
}

func (c Config) backend() string {
	if c.Backend == "" {
		return BackendSturdyc
	}
	return c.Backend
}

func invalid(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid cache configuration")
}
