// Package policy decides how each entity type is cached.
//
// A policy sits between a repository and its Source. Every call takes the
// ambient scope; the scope's cache mode picks the partition (shared
// isolated cache, scope region, or nothing) and the policy decides what to
// read from and write to it:
//
//   - KindDefault: entities are cached one by one. Reading the full set also
//     caches a marker with the set's size, which is checked against the
//     source's live count before it is trusted, so rows inserted behind the
//     cache's back cause a reload.
//   - KindFullDataSet: the whole set is one cache entry and single reads scan
//     it. Writes drop the entry. Concurrent loads of the shared entry are
//     coalesced into one source call. An optional derived index maps a code
//     to an id (LookupID, LookupKey).
//   - KindSingleItemsOnly: like KindDefault for single entities, but full sets
//     and bulk results are never cached.
//   - KindNoCache: every call reaches the source.
//
// Writes never write through. The source is asked to persist first, then the
// affected keys are invalidated in the scope's partition and enlisted on the
// root scope, which clears them from the shared cache once it commits or
// rolls back.
//
// Cached values are stored encoded; every read decodes a fresh copy, so
// callers may mutate what they get back.
//
//	languages, err := policy.New(policy.KindFullDataSet, policy.Options[int, *Language]{
//		Tag:      "language",
//		Identity: func(l *Language) int { return l.ID },
//		Source:   source,
//		Resolver: provider.Resolver(),
//	})
package policy
