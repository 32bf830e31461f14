package cache

import (
	"sync"
	"time"
)

// Region is a scope local overlay cache. It is owned by one scope, holds
// that scope's cache state only, and is thrown away when the scope is
// disposed whether the transaction committed or not.
type Region struct {
	mu         sync.RWMutex
	partitions map[string]*regionPartition
	disposed   bool
}

func NewRegion() *Region {
	return &Region{partitions: make(map[string]*regionPartition)}
}

// GetOrCreate returns the region partition for tag. After Dispose it
// returns NoPartition.
func (r *Region) GetOrCreate(tag string) Partition {
	r.mu.RLock()
	p, ok := r.partitions[tag]
	disposed := r.disposed
	r.mu.RUnlock()
	if disposed {
		return NoPartition
	}
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return NoPartition
	}
	if p, ok = r.partitions[tag]; !ok {
		p = &regionPartition{region: r, entries: make(map[string][]byte)}
		r.partitions[tag] = p
	}
	return p
}

// Dispose drops every entry. Safe to call more than once.
func (r *Region) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposed = true
	r.partitions = nil
}

func (r *Region) Disposed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disposed
}

// regionPartition shares the region lock so Dispose is atomic with respect
// to every partition.
type regionPartition struct {
	region  *Region
	entries map[string][]byte
}

func (p *regionPartition) Get(key string) ([]byte, bool) {
	p.region.mu.RLock()
	defer p.region.mu.RUnlock()
	if p.region.disposed {
		return nil, false
	}
	v, ok := p.entries[key]
	return v, ok
}

// Insert ignores ttl; a region never outlives its scope.
func (p *regionPartition) Insert(key string, value []byte, _ time.Duration) {
	p.region.mu.Lock()
	defer p.region.mu.Unlock()
	if p.region.disposed {
		return
	}
	p.entries[key] = value
}

func (p *regionPartition) Clear(key string) {
	p.region.mu.Lock()
	defer p.region.mu.Unlock()
	delete(p.entries, key)
}

func (p *regionPartition) ClearAll() {
	p.region.mu.Lock()
	defer p.region.mu.Unlock()
	if p.region.disposed {
		return
	}
	p.entries = make(map[string][]byte)
}
