package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// sturdycStore wraps a sturdyc client. sturdyc has a single client wide TTL,
// so per-entry ttl values are ignored.
type sturdycStore struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycStore creates a sturdyc backed store. Capacity, NumShards, TTL
// and EvictionPercentage are passed to sturdyc.New; EvictionInterval is
// applied as an option when set.
func NewSturdycStore(cfg Config) Store {
	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		opts...,
	)
	return &sturdycStore{client: client}
}

func (s *sturdycStore) Get(key string) ([]byte, bool) {
	return s.client.Get(key)
}

func (s *sturdycStore) Set(key string, value []byte, _ time.Duration) {
	s.client.Set(key, value)
}

func (s *sturdycStore) Delete(key string) {
	s.client.Delete(key)
}

func (s *sturdycStore) Keys() []string {
	return s.client.ScanKeys()
}

func (s *sturdycStore) Close() error { return nil }
