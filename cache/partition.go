package cache

import "time"

// Partition is one entity type's slice of a cache. Values are encoded
// bytes; decoding them is the caller's business, which is what keeps a
// cached entity from being shared between callers.
type Partition interface {
	Get(key string) ([]byte, bool)
	// Insert stores value under key. ttl <= 0 means the cache default.
	Insert(key string, value []byte, ttl time.Duration)
	Clear(key string)
	ClearAll()
}

// Versioned is implemented by partitions shared between scopes. Version
// moves on every Clear and ClearAll; a load that read its data before an
// invalidation uses InsertSince so it cannot put the old data back.
type Versioned interface {
	Partition
	Version() uint64
	// InsertSince stores value unless the partition was invalidated after
	// since was read. It reports whether the value was kept.
	InsertSince(since uint64, key string, value []byte, ttl time.Duration) bool
}

// VersionOf returns p's version, or 0 when p does not keep one.
func VersionOf(p Partition) uint64 {
	if v, ok := p.(Versioned); ok {
		return v.Version()
	}
	return 0
}

// InsertSince is Versioned.InsertSince, or a plain Insert for partitions
// that are not shared.
func InsertSince(p Partition, since uint64, key string, value []byte, ttl time.Duration) bool {
	if v, ok := p.(Versioned); ok {
		return v.InsertSince(since, key, value, ttl)
	}
	p.Insert(key, value, ttl)
	return true
}

// NoPartition always misses and never stores. It backs the None cache mode.
var NoPartition Partition = noPartition{}

type noPartition struct{}

func (noPartition) Get(string) ([]byte, bool)            { return nil, false }
func (noPartition) Insert(string, []byte, time.Duration) {}
func (noPartition) Clear(string)                         {}
func (noPartition) ClearAll()                            {}
