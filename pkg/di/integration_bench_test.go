package di

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-scopecache/pkg/testsupport"
	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/repositorycache"
	"github.com/goliatone/go-scopecache/scope"
)

func seededUsers(n int) *testsupport.MemStore[int, user] {
	store := testsupport.NewMemStore(userID)
	for i := 1; i <= n; i++ {
		store.Seed(user{
			ID:    i,
			Name:  fmt.Sprintf("User %d", i),
			Email: fmt.Sprintf("user%d@example.com", i),
		})
	}
	return store
}

func newUserRepository(tb testing.TB, kind policy.Kind, store *testsupport.MemStore[int, user]) (*Container, *repositorycache.CachedRepository[int, user]) {
	tb.Helper()
	c, err := NewContainer(DefaultConfig(), WithTransactor(store))
	if err != nil {
		tb.Fatalf("NewContainer failed: %v", err)
	}
	tb.Cleanup(func() { _ = c.Close() })

	repo, err := NewCachedRepository(c, kind, policy.Options[int, user]{
		Tag:      "user",
		Identity: userID,
		Source:   store,
	}, store)
	if err != nil {
		tb.Fatalf("NewCachedRepository failed: %v", err)
	}
	return c, repo
}

func TestConcurrentAccess(t *testing.T) {
	for _, kind := range []policy.Kind{policy.KindDefault, policy.KindFullDataSet, policy.KindSingleItemsOnly} {
		t.Run(kind.String(), func(t *testing.T) {
			store := seededUsers(100)
			c, repo := newUserRepository(t, kind, store)
			ctx := context.Background()

			const workers = 20
			const opsPerWorker = 25

			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(worker int) {
					defer wg.Done()
					errs <- c.WithTransaction(ctx, func(ctx context.Context, sc *scope.Scope) error {
						for j := 0; j < opsPerWorker; j++ {
							id := (worker*opsPerWorker+j)%100 + 1
							u, ok, err := repo.Get(ctx, sc, id)
							if err != nil {
								return fmt.Errorf("worker %d Get(%d): %w", worker, id, err)
							}
							if !ok || u.ID != id {
								return fmt.Errorf("worker %d Get(%d) = %+v, %v", worker, id, u, ok)
							}
							if j%10 == 0 {
								all, err := repo.GetMany(ctx, sc)
								if err != nil {
									return fmt.Errorf("worker %d GetMany: %w", worker, err)
								}
								if len(all) != 100 {
									return fmt.Errorf("worker %d GetMany returned %d users", worker, len(all))
								}
							}
						}
						return nil
					})
				}(w)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				if err != nil {
					t.Error(err)
				}
			}
		})
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	store := seededUsers(10)
	c, repo := newUserRepository(t, policy.KindDefault, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for w := 0; w < 10; w++ {
		wg.Add(2)
		go func(worker int) {
			defer wg.Done()
			errs <- c.WithTransaction(ctx, func(ctx context.Context, sc *scope.Scope) error {
				_, _, err := repo.Get(ctx, sc, worker%10+1)
				return err
			}, scope.WithCacheMode(scope.Scoped))
		}(w)
		go func(worker int) {
			defer wg.Done()
			errs <- c.WithTransaction(ctx, func(ctx context.Context, sc *scope.Scope) error {
				u := user{ID: worker%10 + 1, Name: fmt.Sprintf("Renamed %d", worker)}
				return repo.Save(ctx, sc, u)
			})
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}

	// Readers cached into their own regions and every write invalidated the
	// shared cache, so a fresh scope must read what the store holds.
	err := c.WithTransaction(ctx, func(ctx context.Context, sc *scope.Scope) error {
		for id := 1; id <= 10; id++ {
			u, ok, err := repo.Get(ctx, sc, id)
			if err != nil || !ok {
				return fmt.Errorf("Get(%d) = %v, %v", id, ok, err)
			}
			if u.Name != fmt.Sprintf("Renamed %d", id-1) {
				return fmt.Errorf("Get(%d).Name = %q", id, u.Name)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBatchedGetMany(t *testing.T) {
	store := seededUsers(50)
	cfg := DefaultConfig()
	cfg.MaxGroupSize = 8

	c, err := NewContainer(cfg, WithTransactor(store))
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	defer c.Close()

	repo, err := NewCachedRepository(c, policy.KindSingleItemsOnly, policy.Options[int, user]{
		Tag:    "user",
		Source: store,
	}, store)
	if err != nil {
		t.Fatalf("NewCachedRepository failed: %v", err)
	}

	ids := make([]int, 0, 20)
	for i := 1; i <= 20; i++ {
		ids = append(ids, i)
	}

	err = c.WithTransaction(context.Background(), func(ctx context.Context, sc *scope.Scope) error {
		got, err := repo.GetMany(ctx, sc, ids...)
		if err != nil {
			return err
		}
		if len(got) != len(ids) {
			t.Fatalf("GetMany returned %d users, want %d", len(got), len(ids))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	batches := store.Calls().Batches
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches of at most 8 ids, got %d", len(batches))
	}
	for _, b := range batches {
		if len(b) > 8 {
			t.Fatalf("batch of %d ids exceeds the group size", len(b))
		}
	}
}

func BenchmarkPolicyGetHit(b *testing.B) {
	for _, kind := range []policy.Kind{policy.KindDefault, policy.KindFullDataSet, policy.KindSingleItemsOnly, policy.KindNoCache} {
		b.Run(kind.String(), func(b *testing.B) {
			store := seededUsers(1000)
			c, repo := newUserRepository(b, kind, store)
			ctx := context.Background()

			sc, err := c.Begin(ctx)
			if err != nil {
				b.Fatalf("Begin failed: %v", err)
			}
			defer sc.Dispose(ctx)

			if _, err := repo.GetMany(ctx, sc); err != nil {
				b.Fatalf("warm up failed: %v", err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := repo.Get(ctx, sc, i%1000+1); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkPolicyGetMiss(b *testing.B) {
	store := seededUsers(1000)
	c, repo := newUserRepository(b, policy.KindDefault, store)
	ctx := context.Background()

	sc, err := c.Begin(ctx)
	if err != nil {
		b.Fatalf("Begin failed: %v", err)
	}
	defer sc.Dispose(ctx)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%1000 == 0 {
			b.StopTimer()
			c.Caches().ClearAll()
			b.StartTimer()
		}
		if _, _, err := repo.Get(ctx, sc, i%1000+1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConcurrentScopes(b *testing.B) {
	store := seededUsers(1000)
	c, repo := newUserRepository(b, policy.KindDefault, store)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			err := c.WithTransaction(ctx, func(ctx context.Context, sc *scope.Scope) error {
				_, _, err := repo.Get(ctx, sc, i%1000+1)
				return err
			})
			if err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}
