// Package cache holds the two cache layers used by the scoped repository
// cache: the process wide IsolatedCaches and the scope local Region.
//
// # Overview
//
// Both layers hand out Partitions, one per entity type tag. A partition
// stores encoded bytes, never live values, so every reader decodes its own
// copy and a caller mutating an entity it received cannot corrupt what other
// callers see.
//
//   - IsolatedCaches: shared by every scope in the process. Partitions are
//     created lazily and live until cleared. Entries are stored in a byte
//     store selected by Config.Backend (sturdyc, ristretto or bigcache).
//   - Region: owned by a single scope running in Scoped cache mode. It is
//     discarded when the scope is disposed, committed or not.
//   - NoPartition: always misses, used for the None cache mode.
//
// # Keys
//
// Inside a partition an entity lives under EntityKey(serializer, id) and a
// full data set, or the marker describing one, lives under AllKey:
//
//	serializer := cache.NewDefaultKeySerializer()
//	key := cache.EntityKey(serializer, 42) // "e::42"
//
// The default serializer uses reflection and handles integers, strings,
// composite structs, slices and maps with deterministic output. Values that
// implement fmt.Stringer (uuid.UUID for instance) are rendered through it.
//
// # Clearing
//
// Partition.ClearAll on an isolated partition bumps the partition generation
// first, so entries inserted by a writer that started before the clear can
// never be read again, and then deletes old keys when the backend can list
// them.
//
//	caches, err := cache.NewIsolatedCaches(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer caches.Close()
//
//	p := caches.GetOrCreate("language")
//	p.Insert(cache.EntityKey(serializer, 1), payload, 0)
//	p.ClearAll()
package cache
