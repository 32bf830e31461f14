package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/pkg/testsupport"
	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/scope"
)

func TestNewPrometheusHooks_ValidatesNamespace(t *testing.T) {
	for _, ns := range []string{"", "bad-name", "9lives"} {
		if _, err := NewPrometheusHooks(prometheus.NewRegistry(), ns); err == nil {
			t.Fatalf("namespace %q should be rejected", ns)
		}
	}
}

func TestPrometheusHooks_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := NewPrometheusHooks(reg, "scopecache")
	if err != nil {
		t.Fatalf("NewPrometheusHooks failed: %v", err)
	}

	h.Hit("language")
	h.Hit("language")
	h.Miss("language")
	h.Stale("domain")
	h.Invalidated("domain")
	h.Reload("domain", 12)

	if got := testutil.ToFloat64(h.lookups.WithLabelValues("language", "hit")); got != 2 {
		t.Fatalf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(h.lookups.WithLabelValues("language", "miss")); got != 1 {
		t.Fatalf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.stale.WithLabelValues("domain")); got != 1 {
		t.Fatalf("stale = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.invalidations.WithLabelValues("domain")); got != 1 {
		t.Fatalf("invalidations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.reloads.WithLabelValues("domain")); got != 1 {
		t.Fatalf("reloads = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(h.reloadSize, "scopecache_cache_reload_items"); n != 1 {
		t.Fatalf("reload size series = %d, want 1", n)
	}
}

func TestNewPrometheusHooks_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusHooks(reg, "shared")
	if err != nil {
		t.Fatalf("first NewPrometheusHooks failed: %v", err)
	}
	second, err := NewPrometheusHooks(reg, "shared")
	if err != nil {
		t.Fatalf("second NewPrometheusHooks failed: %v", err)
	}

	first.Hit("language")
	second.Hit("language")
	if got := testutil.ToFloat64(first.lookups.WithLabelValues("language", "hit")); got != 2 {
		t.Fatalf("shared hits = %v, want 2", got)
	}
}

type row struct {
	ID   int    `msgpack:"id"`
	Name string `msgpack:"name"`
}

func TestPrometheusHooks_DrivenByPolicy(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	h, err := NewPrometheusHooks(reg, "app")
	if err != nil {
		t.Fatalf("NewPrometheusHooks failed: %v", err)
	}

	caches, err := cache.NewIsolatedCaches(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewIsolatedCaches failed: %v", err)
	}
	defer caches.Close()

	store := testsupport.NewMemStore(func(r row) int { return r.ID })
	store.Seed(row{ID: 1, Name: "one"}, row{ID: 2, Name: "two"})
	provider := scope.NewProvider(caches, scope.WithTransactor(store))

	p, err := policy.NewDefault(policy.Options[int, row]{
		Tag:      "row",
		Identity: func(r row) int { return r.ID },
		Source:   store,
		Resolver: provider.Resolver(),
		Hooks:    h,
	})
	if err != nil {
		t.Fatalf("NewDefault failed: %v", err)
	}

	err = scope.WithTransaction(ctx, provider, func(ctx context.Context, sc *scope.Scope) error {
		for i := 0; i < 2; i++ {
			if _, _, err := p.Get(ctx, sc, 1); err != nil {
				return err
			}
		}
		return p.Update(ctx, sc, row{ID: 1, Name: "uno"}, store.PersistUpdated)
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	if got := testutil.ToFloat64(h.lookups.WithLabelValues("row", "miss")); got != 1 {
		t.Fatalf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.lookups.WithLabelValues("row", "hit")); got != 1 {
		t.Fatalf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.invalidations.WithLabelValues("row")); got != 1 {
		t.Fatalf("invalidations = %v, want 1", got)
	}
}
