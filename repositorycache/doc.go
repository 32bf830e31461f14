// Package repositorycache provides the repository surface callers program
// against: a thin generic façade over a cache policy and a persister.
//
// # Overview
//
// A CachedRepository pairs one policy.Policy (which decides how the entity
// type is cached) with one Persister (which writes it). Every method takes
// the caller's scope; the scope decides which cache partition is read and
// whether writes are committed.
//
//	langs, _ := policy.NewFullDataSet(policy.Options[int, *Language]{
//		Tag:      "language",
//		Identity: func(l *Language) int { return l.ID },
//		Source:   src,
//		Resolver: provider.Resolver(),
//	})
//	repo := repositorycache.New[int, *Language](langs, src)
//
//	err := scope.WithTransaction(ctx, provider, func(ctx context.Context, sc *scope.Scope) error {
//		l, ok, err := repo.Get(ctx, sc, 1)
//		if err != nil || !ok {
//			return err
//		}
//		l.CultureName = "English"
//		l.MarkDirty()
//		return repo.Save(ctx, sc, l)
//	})
//
// # Save semantics
//
// Save creates an entity that has no identity yet and updates one that does.
// Entities embedding Tracking are only written when they were marked dirty;
// anything else is always written. The identity check defaults to the
// Identifiable interface, then to the ID field found by ReflectIdentity.
//
// # Invalidation
//
// Invalidation belongs to the policy. Writes invalidate the partition the
// scope resolved to and enlist the same keys on the root scope, which clears
// them from the shared cache when it ends, committed or not.
package repositorycache
