package cacheinfra

import (
	"sync/atomic"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/goliatone/go-scopecache/pkg/logging"
)

// bigcacheStore has no per-entry TTL; Config.TTL becomes the life window.
// Entries larger than a shard are refused; a refused write is a later miss.
type bigcacheStore struct {
	c        *bc.BigCache
	log      logging.Logger
	rejected atomic.Uint64
}

func NewBigCacheStore(cfg Config) (Store, error) {
	conf := bc.DefaultConfig(cfg.TTL)
	if cfg.BigCache.Shards > 0 {
		conf.Shards = cfg.BigCache.Shards
	}
	if cfg.BigCache.CleanWindow > 0 {
		conf.CleanWindow = cfg.BigCache.CleanWindow
	}
	if cfg.BigCache.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.BigCache.MaxEntriesInWindow
	}
	if cfg.BigCache.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.BigCache.MaxEntrySize
	}
	if cfg.BigCache.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.BigCache.HardMaxCacheSizeMB
	}
	conf.Verbose = false

	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &bigcacheStore{c: c, log: logging.OrNop(cfg.Logger)}, nil
}

func (b *bigcacheStore) Get(key string) ([]byte, bool) {
	v, err := b.c.Get(key)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (b *bigcacheStore) Set(key string, value []byte, _ time.Duration) {
	if err := b.c.Set(key, value); err != nil {
		b.rejected.Add(1)
		b.log.Debug("bigcache refused entry", logging.Fields{
			"key":   key,
			"size":  len(value),
			"error": err.Error(),
		})
	}
}

// Rejected counts the writes the store refused.
func (b *bigcacheStore) Rejected() uint64 {
	return b.rejected.Load()
}

func (b *bigcacheStore) Delete(key string) {
	_ = b.c.Delete(key)
}

func (b *bigcacheStore) Keys() []string {
	var keys []string
	it := b.c.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			continue
		}
		keys = append(keys, entry.Key())
	}
	return keys
}

func (b *bigcacheStore) Close() error {
	return b.c.Close()
}
