package cacheinfra

import (
	"time"

	rc "github.com/dgraph-io/ristretto"
)

// ristrettoStore is admission controlled: a Set may be dropped under
// pressure, and writes become visible asynchronously. Both show up as
// misses, which the policies treat as "fetch again".
type ristrettoStore struct {
	c   *rc.Cache
	ttl time.Duration
}

func NewRistrettoStore(cfg Config) (Store, error) {
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.Ristretto.NumCounters,
		MaxCost:     cfg.Ristretto.MaxCost,
		BufferItems: cfg.Ristretto.BufferItems,
		Metrics:     cfg.Ristretto.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &ristrettoStore{c: c, ttl: cfg.TTL}, nil
}

func (r *ristrettoStore) Get(key string) ([]byte, bool) {
	v, ok := r.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	if b == nil {
		r.c.Del(key)
		return nil, false
	}
	return b, true
}

func (r *ristrettoStore) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.ttl
	}
	r.c.SetWithTTL(key, value, int64(len(value)), ttl)
}

func (r *ristrettoStore) Delete(key string) {
	r.c.Del(key)
}

// Wait blocks until buffered writes have been applied.
func (r *ristrettoStore) Wait() {
	r.c.Wait()
}

func (r *ristrettoStore) Close() error {
	r.c.Wait()
	r.c.Close()
	return nil
}
