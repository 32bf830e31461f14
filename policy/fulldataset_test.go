package policy

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/scope"
)

func fullDataSet(t *testing.T, h *harness, mutate ...func(*Options[int, language])) *FullDataSetPolicy[int, language] {
	t.Helper()

	opts := h.options()
	for _, m := range mutate {
		m(&opts)
	}
	p, err := NewFullDataSet(opts)
	if err != nil {
		t.Fatalf("NewFullDataSet failed: %v", err)
	}
	return p
}

func withIsoIndex(o *Options[int, language]) {
	o.IndexBy = func(l language) string { return strings.ToLower(l.IsoCode) }
}

func TestFullDataSet_ReadsFilterTheCachedSet(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h)
	ctx := context.Background()
	sc := h.begin(scope.Default)

	if e, found, _ := p.Get(ctx, sc, 2); !found || e.IsoCode != "da-DK" {
		t.Fatalf("unexpected Get result %+v", e)
	}
	got, _ := p.GetMany(ctx, sc, 3, 3, 1, 404)
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 1 {
		t.Fatalf("unexpected GetMany result %+v", got)
	}
	if ok, _ := p.Exists(ctx, sc, 404); ok {
		t.Fatal("expected 404 not to exist")
	}

	calls := h.store.Calls()
	if calls.GetAll != 1 || calls.Get != 0 || len(calls.Batches) != 0 {
		t.Fatalf("everything must be served from one full load, got %+v", calls)
	}
}

func TestFullDataSet_ReturnsOwnedCopies(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h)
	ctx := context.Background()
	sc := h.begin(scope.Default)

	all, _ := p.GetMany(ctx, sc)
	all[0].Name = "mutated"

	again, _ := p.GetMany(ctx, sc)
	if again[0].Name == "mutated" {
		t.Fatal("caller mutation leaked into the cached set")
	}
}

// Any write makes the next read reload the whole set.
func TestFullDataSet_WriteInvalidatesWholeSet(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h)
	ctx := context.Background()
	sc := h.begin(scope.Default)

	_, _ = p.GetMany(ctx, sc)
	_, _, _ = p.Get(ctx, sc, 2)
	if calls := h.store.Calls(); calls.GetAll != 1 {
		t.Fatalf("expected one load, got %d", calls.GetAll)
	}

	updated := language{ID: 2, IsoCode: "da-DK", Name: "Dansk"}
	if err := p.Update(ctx, sc, updated, h.store.PersistUpdated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, ok := h.global().Get(cache.AllKey); ok {
		t.Fatal("write must drop the cached set")
	}

	e, _, _ := p.Get(ctx, sc, 2)
	if e.Name != "Dansk" {
		t.Fatalf("expected reloaded entity, got %q", e.Name)
	}
	if calls := h.store.Calls(); calls.GetAll != 2 {
		t.Fatalf("expected a full reload, got %d loads", calls.GetAll)
	}

	_ = p.Create(ctx, sc, language{ID: 5, IsoCode: "it-IT"}, h.store.PersistNew)
	_ = p.Delete(ctx, sc, language{ID: 1}, h.store.PersistDeleted)
	all, _ := p.GetMany(ctx, sc)
	if len(all) != 3 {
		t.Fatalf("expected 3 entities after create and delete, got %d", len(all))
	}
	if calls := h.store.Calls(); calls.GetAll != 3 {
		t.Fatalf("expected one more reload, got %d loads", calls.GetAll)
	}
}

func TestFullDataSet_CachesEmptySet(t *testing.T) {
	h := newHarness(t)
	for _, l := range seedLanguages() {
		h.store.Remove(l.ID)
	}
	p := fullDataSet(t, h)
	ctx := context.Background()
	sc := h.begin(scope.Default)

	_, _ = p.GetMany(ctx, sc)
	_, _ = p.GetMany(ctx, sc)
	if calls := h.store.Calls(); calls.GetAll != 1 {
		t.Fatalf("an empty set is still a set, got %d loads", calls.GetAll)
	}
}

func TestFullDataSet_QueryUnsupported(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h)
	ctx := context.Background()
	sc := h.begin(scope.Default)

	if _, err := p.Query(ctx, sc, func(language) bool { return true }); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}

	danish, err := p.Filter(ctx, sc, func(l language) bool { return l.Name == "Danish" })
	if err != nil || len(danish) != 1 || danish[0].ID != 2 {
		t.Fatalf("unexpected Filter result %+v (%v)", danish, err)
	}
}

func TestFullDataSet_ConcurrentLoadsShareOneFetch(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.store.OnLoad(func() {
		once.Do(func() { close(started) })
		<-release
	})

	const readers = 16
	results := make([][]language, readers)
	errs := make([]error, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		sc := h.begin(scope.Default)
		wg.Add(1)
		go func(i int, sc *scope.Scope) {
			defer wg.Done()
			results[i], errs[i] = p.GetMany(context.Background(), sc)
		}(i, sc)
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		if errs[i] != nil || len(results[i]) != 3 {
			t.Fatalf("reader %d: got %d entities (%v)", i, len(results[i]), errs[i])
		}
	}
	if calls := h.store.Calls(); calls.GetAll != 1 {
		t.Fatalf("expected exactly one fetch, got %d", calls.GetAll)
	}

	results[0][0].Name = "mutated"
	if results[1][0].Name == "mutated" {
		t.Fatal("coalesced readers share entity values")
	}
}

func TestFullDataSet_FollowerSurvivesLeaderCancellation(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h)

	started := make(chan struct{})
	release := make(chan struct{})
	var first sync.Once
	h.store.OnLoad(func() {
		blocked := false
		first.Do(func() {
			blocked = true
			close(started)
		})
		if blocked {
			<-release
		}
	})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderScope := h.begin(scope.Default)
	followerScope := h.begin(scope.Default)

	leaderErr := make(chan error, 1)
	go func() {
		_, err := p.GetMany(leaderCtx, leaderScope)
		leaderErr <- err
	}()
	<-started

	followerDone := make(chan []language, 1)
	followerErr := make(chan error, 1)
	go func() {
		items, err := p.GetMany(context.Background(), followerScope)
		followerDone <- items
		followerErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	close(release)

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader should see its own cancellation, got %v", err)
	}
	items := <-followerDone
	if err := <-followerErr; err != nil {
		t.Fatalf("follower failed with the leader's error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(items))
	}
}

func TestFullDataSet_ScopedLoadsAreNotShared(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h)
	ctx := context.Background()

	a := h.begin(scope.Scoped)
	_, _ = p.GetMany(ctx, a)
	if _, ok := h.global().Get(cache.AllKey); ok {
		t.Fatal("a Scoped load must stay in the scope's region")
	}
	_, _ = p.GetMany(ctx, a)
	if calls := h.store.Calls(); calls.GetAll != 1 {
		t.Fatalf("the region should serve the second read, got %d loads", calls.GetAll)
	}

	b := h.begin(scope.Scoped)
	_, _ = p.GetMany(ctx, b)
	if calls := h.store.Calls(); calls.GetAll != 2 {
		t.Fatalf("another scope has its own region, got %d loads", calls.GetAll)
	}

	none := h.begin(scope.None)
	_, _ = p.GetMany(ctx, none)
	_, _ = p.GetMany(ctx, none)
	if calls := h.store.Calls(); calls.GetAll != 4 {
		t.Fatalf("None mode never caches, got %d loads", calls.GetAll)
	}
}

func TestFullDataSet_Index(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h, withIsoIndex)
	ctx := context.Background()
	sc := h.begin(scope.Default)

	id, ok, err := p.LookupID(ctx, sc, "da-dk")
	if err != nil || !ok || id != 2 {
		t.Fatalf("LookupID = %d, %v, %v", id, ok, err)
	}
	code, ok, _ := p.LookupKey(ctx, sc, 3)
	if !ok || code != "fr-fr" {
		t.Fatalf("LookupKey = %q, %v", code, ok)
	}
	if _, ok, _ := p.LookupID(ctx, sc, "xx-xx"); ok {
		t.Fatal("unknown code must miss")
	}

	if err := p.Update(ctx, sc, language{ID: 2, IsoCode: "da-GL", Name: "Danish"}, h.store.PersistUpdated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, ok, _ := p.LookupID(ctx, sc, "da-dk"); ok {
		t.Fatal("index must be rebuilt after the set changed")
	}
	if id, ok, _ := p.LookupID(ctx, sc, "da-gl"); !ok || id != 2 {
		t.Fatalf("expected the new code to resolve, got %d %v", id, ok)
	}

	scoped := h.begin(scope.Scoped)
	if id, ok, _ := p.LookupID(ctx, scoped, "en-us"); !ok || id != 1 {
		t.Fatalf("Scoped lookup = %d, %v", id, ok)
	}
	if code, ok, _ := p.LookupKey(ctx, scoped, 1); !ok || code != "en-us" {
		t.Fatalf("Scoped reverse lookup = %q, %v", code, ok)
	}
}

func TestFullDataSet_IndexConcurrentRebuild(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h, withIsoIndex)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sc := h.begin(scope.Default)
		wg.Add(1)
		go func(sc *scope.Scope) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if id, ok, err := p.LookupID(ctx, sc, "fr-fr"); err != nil || !ok || id != 3 {
					t.Errorf("LookupID = %d, %v, %v", id, ok, err)
					return
				}
				if j%10 == 0 {
					_ = p.ClearAll(ctx, sc)
				}
			}
		}(sc)
	}
	wg.Wait()
}

func TestFullDataSet_LookupWithoutIndex(t *testing.T) {
	h := newHarness(t)
	p := fullDataSet(t, h)
	sc := h.begin(scope.Default)

	if _, _, err := p.LookupID(context.Background(), sc, "en-us"); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
	if _, _, err := p.LookupKey(context.Background(), sc, 1); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}
