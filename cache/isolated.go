package cache

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-scopecache/internal/cacheinfra"
	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/puzpuzpuz/xsync/v3"
)

// IsolatedCaches is the process wide cache, partitioned by entity type tag.
// Partitions are created lazily and live until cleared. It is safe for
// concurrent use by any number of scopes.
type IsolatedCaches struct {
	store      cacheinfra.Store
	partitions *xsync.MapOf[string, *isolatedPartition]
}

// Option configures NewIsolatedCaches.
type Option func(*cacheinfra.Config)

// WithLogger routes backend diagnostics, such as entries the store refused,
// to l.
func WithLogger(l logging.Logger) Option {
	return func(c *cacheinfra.Config) {
		c.Logger = l
	}
}

// NewIsolatedCaches validates cfg and builds the configured backend.
func NewIsolatedCaches(cfg Config, opts ...Option) (*IsolatedCaches, error) {
	internal := cfg.toInternal()
	for _, opt := range opts {
		opt(&internal)
	}
	store, err := cacheinfra.NewStore(internal)
	if err != nil {
		return nil, err
	}
	return newIsolatedCaches(store), nil
}

func newIsolatedCaches(store cacheinfra.Store) *IsolatedCaches {
	return &IsolatedCaches{
		store:      store,
		partitions: xsync.NewMapOf[string, *isolatedPartition](),
	}
}

// GetOrCreate returns the partition for tag, creating it on first use.
func (c *IsolatedCaches) GetOrCreate(tag string) Partition {
	p, _ := c.partitions.LoadOrCompute(tag, func() *isolatedPartition {
		return &isolatedPartition{tag: tag, store: c.store}
	})
	return p
}

// Partition returns the partition for tag if it has been created.
func (c *IsolatedCaches) Partition(tag string) (Partition, bool) {
	p, ok := c.partitions.Load(tag)
	if !ok {
		return nil, false
	}
	return p, true
}

// Tags lists the tags of every partition created so far.
func (c *IsolatedCaches) Tags() []string {
	tags := make([]string, 0, c.partitions.Size())
	c.partitions.Range(func(tag string, _ *isolatedPartition) bool {
		tags = append(tags, tag)
		return true
	})
	return tags
}

// ClearAll clears every partition.
func (c *IsolatedCaches) ClearAll() {
	c.partitions.Range(func(_ string, p *isolatedPartition) bool {
		p.ClearAll()
		return true
	})
}

// Close releases the underlying store.
func (c *IsolatedCaches) Close() error {
	return c.store.Close()
}

// isolatedPartition namespaces keys as <tag>::<generation>::<key>. Bumping
// the generation retires every entry at once, including entries a slow
// writer inserts after the bump under the old generation. version counts
// invalidations and is bumped before the entries go.
type isolatedPartition struct {
	tag     string
	gen     atomic.Uint64
	version atomic.Uint64
	store   cacheinfra.Store
}

func (p *isolatedPartition) prefix(gen uint64) string {
	return p.tag + KeySeparator + strconv.FormatUint(gen, 10) + KeySeparator
}

func (p *isolatedPartition) Get(key string) ([]byte, bool) {
	return p.store.Get(p.prefix(p.gen.Load()) + key)
}

func (p *isolatedPartition) Insert(key string, value []byte, ttl time.Duration) {
	p.store.Set(p.prefix(p.gen.Load())+key, value, ttl)
}

func (p *isolatedPartition) Version() uint64 {
	return p.version.Load()
}

func (p *isolatedPartition) InsertSince(since uint64, key string, value []byte, ttl time.Duration) bool {
	if p.version.Load() != since {
		return false
	}
	full := p.prefix(p.gen.Load()) + key
	p.store.Set(full, value, ttl)
	// an invalidation may have run between the check and the write
	if p.version.Load() != since {
		p.store.Delete(full)
		return false
	}
	return true
}

func (p *isolatedPartition) Clear(key string) {
	p.version.Add(1)
	p.store.Delete(p.prefix(p.gen.Load()) + key)
}

func (p *isolatedPartition) ClearAll() {
	p.version.Add(1)
	old := p.gen.Add(1) - 1

	scanner, ok := p.store.(cacheinfra.Scanner)
	if !ok {
		return
	}
	// anything at or below the old generation is unreachable now
	tagPrefix := p.tag + KeySeparator
	for _, key := range scanner.Keys() {
		if !strings.HasPrefix(key, tagPrefix) {
			continue
		}
		rest := key[len(tagPrefix):]
		idx := strings.Index(rest, KeySeparator)
		if idx < 0 {
			continue
		}
		gen, err := strconv.ParseUint(rest[:idx], 10, 64)
		if err == nil && gen <= old {
			p.store.Delete(key)
		}
	}
}
