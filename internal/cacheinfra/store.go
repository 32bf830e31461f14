package cacheinfra

import (
	"fmt"
	"time"
)

// Store is the byte store shared by every isolated cache partition.
// Implementations must be safe for concurrent use and must return exactly
// the bytes previously stored for a key.
type Store interface {
	Get(key string) ([]byte, bool)
	// Set stores value. ttl <= 0 means the store default; stores without
	// per-entry lifetimes ignore it.
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
	Close() error
}

// Scanner is implemented by stores that can enumerate their keys, which
// lets partitions delete superseded generations eagerly.
type Scanner interface {
	Keys() []string
}

// NewStore validates cfg and builds the configured backend.
func NewStore(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.backend() {
	case BackendSturdyc:
		return NewSturdycStore(cfg), nil
	case BackendRistretto:
		return NewRistrettoStore(cfg)
	case BackendBigCache:
		return NewBigCacheStore(cfg)
	default:
		return nil, fmt.Errorf("cacheinfra: unknown backend %q", cfg.Backend)
	}
}
