package policy

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/goliatone/go-scopecache/pkg/testsupport"
	"github.com/goliatone/go-scopecache/scope"
)

type language struct {
	ID      int    `msgpack:"id"`
	IsoCode string `msgpack:"iso"`
	Name    string `msgpack:"name"`
}

func languageID(l language) int { return l.ID }

func seedLanguages() []language {
	return []language{
		{ID: 1, IsoCode: "en-US", Name: "English (United States)"},
		{ID: 2, IsoCode: "da-DK", Name: "Danish"},
		{ID: 3, IsoCode: "fr-FR", Name: "French"},
	}
}

type countingHooks struct {
	hits, misses, stale, invalidated, reloads atomic.Int64
}

func (h *countingHooks) Hit(string)         { h.hits.Add(1) }
func (h *countingHooks) Miss(string)        { h.misses.Add(1) }
func (h *countingHooks) Stale(string)       { h.stale.Add(1) }
func (h *countingHooks) Invalidated(string) { h.invalidated.Add(1) }
func (h *countingHooks) Reload(string, int) { h.reloads.Add(1) }

type recordingLogger struct {
	logging.NopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ logging.Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

type harness struct {
	t        *testing.T
	store    *testsupport.MemStore[int, language]
	caches   *cache.IsolatedCaches
	provider *scope.Provider
	hooks    *countingHooks
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := cache.DefaultConfig()
	cfg.TTL = time.Minute
	caches, err := cache.NewIsolatedCaches(cfg)
	if err != nil {
		t.Fatalf("NewIsolatedCaches failed: %v", err)
	}
	t.Cleanup(func() { _ = caches.Close() })

	store := testsupport.NewMemStore(languageID)
	store.Seed(seedLanguages()...)

	return &harness{
		t:        t,
		store:    store,
		caches:   caches,
		provider: scope.NewProvider(caches, scope.WithTransactor(store)),
		hooks:    &countingHooks{},
	}
}

func (h *harness) options() Options[int, language] {
	return Options[int, language]{
		Tag:      "language",
		Identity: languageID,
		Source:   h.store,
		Resolver: h.provider.Resolver(),
		Hooks:    h.hooks,
	}
}

func (h *harness) policy(kind Kind, mutate ...func(*Options[int, language])) Policy[int, language] {
	h.t.Helper()

	opts := h.options()
	for _, m := range mutate {
		m(&opts)
	}
	p, err := New(kind, opts)
	if err != nil {
		h.t.Fatalf("New(%s) failed: %v", kind, err)
	}
	return p
}

// begin starts a root scope that is disposed, uncompleted, at cleanup
// unless the test disposes it first.
func (h *harness) begin(mode scope.CacheMode) *scope.Scope {
	h.t.Helper()

	sc, err := h.provider.Begin(context.Background(), scope.WithCacheMode(mode))
	if err != nil {
		h.t.Fatalf("Begin failed: %v", err)
	}
	h.t.Cleanup(func() { _ = sc.Dispose(context.Background()) })
	return sc
}

// commit completes and disposes sc.
func (h *harness) commit(sc *scope.Scope) {
	h.t.Helper()

	sc.Complete()
	if err := sc.Dispose(context.Background()); err != nil {
		h.t.Fatalf("Dispose failed: %v", err)
	}
}

func (h *harness) global() cache.Partition {
	return h.caches.GetOrCreate("language")
}

var allKinds = []Kind{KindDefault, KindFullDataSet, KindSingleItemsOnly, KindNoCache}

// getOnlySource hides the optional contracts of the wrapped store.
type getOnlySource struct {
	store *testsupport.MemStore[int, language]
}

func (s getOnlySource) PerformGet(ctx context.Context, sc *scope.Scope, id int) (language, bool, error) {
	return s.store.PerformGet(ctx, sc, id)
}

func (s getOnlySource) PerformGetAll(ctx context.Context, sc *scope.Scope, ids []int) ([]language, error) {
	return s.store.PerformGetAll(ctx, sc, ids)
}

// driftingSource counts with a different filter than it loads with.
type driftingSource struct {
	getOnlySource
}

func (s driftingSource) PerformCount(ctx context.Context, sc *scope.Scope) (int, error) {
	n, err := s.store.PerformCount(ctx, sc)
	return n + 1, err
}

// cancellingSource cancels the caller's context once a fetch succeeded.
type cancellingSource struct {
	getOnlySource
	cancel context.CancelFunc
}

func (s cancellingSource) PerformGet(ctx context.Context, sc *scope.Scope, id int) (language, bool, error) {
	e, found, err := s.store.PerformGet(context.WithoutCancel(ctx), sc, id)
	s.cancel()
	return e, found, err
}

func (s cancellingSource) PerformGetAll(ctx context.Context, sc *scope.Scope, ids []int) ([]language, error) {
	items, err := s.store.PerformGetAll(context.WithoutCancel(ctx), sc, ids)
	s.cancel()
	return items, err
}

// interleavingSource runs between once after the first fetch has read its
// rows and before they reach the policy.
type interleavingSource struct {
	getOnlySource
	once    *sync.Once
	between func()
}

func (s interleavingSource) PerformGet(ctx context.Context, sc *scope.Scope, id int) (language, bool, error) {
	e, found, err := s.store.PerformGet(ctx, sc, id)
	s.once.Do(s.between)
	return e, found, err
}

func (s interleavingSource) PerformGetAll(ctx context.Context, sc *scope.Scope, ids []int) ([]language, error) {
	items, err := s.store.PerformGetAll(ctx, sc, ids)
	s.once.Do(s.between)
	return items, err
}
