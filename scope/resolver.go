package scope

import "github.com/goliatone/go-scopecache/cache"

// Resolver picks the partition a repository call must use from the
// scope's cache mode.
type Resolver struct {
	caches *cache.IsolatedCaches
}

// NewResolver builds a resolver over caches. Provider.Resolver is the usual
// way to get one.
func NewResolver(caches *cache.IsolatedCaches) *Resolver {
	return &Resolver{caches: caches}
}

// Partition returns the partition for tag as seen from sc.
func (r *Resolver) Partition(sc *Scope, tag string) (cache.Partition, error) {
	if sc == nil {
		return nil, ErrScopeRequired
	}
	if sc.Disposed() {
		return nil, ErrScopeDisposed
	}

	switch sc.CacheMode() {
	case Scoped:
		if region := sc.Region(); region != nil {
			return region.GetOrCreate(tag), nil
		}
		return r.caches.GetOrCreate(tag), nil
	case None:
		return cache.NoPartition, nil
	default:
		return r.caches.GetOrCreate(tag), nil
	}
}

// Global returns the isolated partition for tag regardless of mode. Writes
// use it to invalidate the shared cache directly.
func (r *Resolver) Global(tag string) cache.Partition {
	return r.caches.GetOrCreate(tag)
}
