package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-scopecache/batch"
	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/codec"
	"github.com/goliatone/go-scopecache/scope"
)

// FullDataSetPolicy caches every entity of a type as one entry and answers
// single entity reads by scanning it. Any write drops the whole entry.
//
// Loads of the shared entry are coalesced: concurrent misses in Default mode
// share a single source call and each caller decodes its own copy.
type FullDataSetPolicy[K comparable, E any] struct {
	base[K, E]
	flight singleflight.Group
	index  *derivedIndex[K]
}

// NewFullDataSet builds a FullDataSetPolicy. When opts.IndexBy is set the
// policy also maintains a code to id index for LookupID and LookupKey.
func NewFullDataSet[K comparable, E any](opts Options[K, E]) (*FullDataSetPolicy[K, E], error) {
	b, err := newBase(KindFullDataSet, opts)
	if err != nil {
		return nil, err
	}
	p := &FullDataSetPolicy[K, E]{base: b}
	if b.opts.IndexBy != nil {
		p.index = &derivedIndex[K]{}
	}
	return p, nil
}

// snapshot is a decoded full set. shared is true when raw is the isolated
// cache entry.
type snapshot[E any] struct {
	items  []E
	raw    []byte
	shared bool
}

// load returns the full set, from cache when possible.
func (p *FullDataSetPolicy[K, E]) load(ctx context.Context, sc *scope.Scope) (snapshot[E], error) {
	part, err := p.partition(sc)
	if err != nil {
		return snapshot[E]{}, err
	}

	shared := sc.CacheMode() == scope.Default
	if snap, ok := p.cached(part); ok {
		p.opts.Hooks.Hit(p.opts.Tag)
		snap.shared = shared
		return snap, nil
	}
	p.opts.Hooks.Miss(p.opts.Tag)

	if !shared {
		raw, err := p.fetchAndStore(ctx, sc, part)
		if err != nil {
			return snapshot[E]{}, err
		}
		return p.decode(raw, false)
	}

	ch := p.flight.DoChan(cache.AllKey, func() (any, error) {
		if raw, ok := part.Get(cache.AllKey); ok {
			return raw, nil
		}
		return p.fetchAndStore(ctx, sc, part)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return snapshot[E]{}, ctx.Err()
	}

	if res.Err != nil {
		// the call may have run under another caller's context or scope
		if ctx.Err() == nil && leaderAborted(res.Err) {
			raw, err := p.fetchAndStore(ctx, sc, part)
			if err != nil {
				return snapshot[E]{}, err
			}
			return p.decode(raw, true)
		}
		return snapshot[E]{}, res.Err
	}
	return p.decode(res.Val.([]byte), true)
}

func leaderAborted(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, scope.ErrScopeDisposed)
}

func (p *FullDataSetPolicy[K, E]) cached(part cache.Partition) (snapshot[E], bool) {
	raw, ok := part.Get(cache.AllKey)
	if !ok {
		return snapshot[E]{}, false
	}
	snap, err := p.decode(raw, false)
	if err != nil {
		p.log.Warn("dropping undecodable full set", p.fields().With("error", err.Error()))
		part.Clear(cache.AllKey)
		return snapshot[E]{}, false
	}
	return snap, true
}

func (p *FullDataSetPolicy[K, E]) decode(raw []byte, shared bool) (snapshot[E], error) {
	items, err := codec.DecodeList(p.opts.Codec, raw)
	if err != nil {
		return snapshot[E]{}, err
	}
	return snapshot[E]{items: items, raw: raw, shared: shared}, nil
}

func (p *FullDataSetPolicy[K, E]) fetchAndStore(ctx context.Context, sc *scope.Scope, part cache.Partition) ([]byte, error) {
	since := cache.VersionOf(part)
	items, err := p.fetchAll(ctx, sc)
	if err != nil {
		return nil, err
	}
	p.opts.Hooks.Reload(p.opts.Tag, len(items))

	raw, err := codec.EncodeList(p.opts.Codec, items)
	if err != nil {
		return nil, err
	}
	if ctx.Err() == nil {
		p.insert(part, since, cache.AllKey, raw)
	}
	return raw, nil
}

func (p *FullDataSetPolicy[K, E]) Get(ctx context.Context, sc *scope.Scope, id K) (E, bool, error) {
	var zero E
	snap, err := p.load(ctx, sc)
	if err != nil {
		return zero, false, err
	}
	for _, e := range snap.items {
		if p.opts.Identity(e) == id {
			return e, true, nil
		}
	}
	return zero, false, nil
}

// GetCached scans the cached set only.
func (p *FullDataSetPolicy[K, E]) GetCached(_ context.Context, sc *scope.Scope, id K) (E, bool, error) {
	var zero E
	part, err := p.partition(sc)
	if err != nil {
		return zero, false, err
	}
	snap, ok := p.cached(part)
	if !ok {
		return zero, false, nil
	}
	for _, e := range snap.items {
		if p.opts.Identity(e) == id {
			return e, true, nil
		}
	}
	return zero, false, nil
}

func (p *FullDataSetPolicy[K, E]) GetMany(ctx context.Context, sc *scope.Scope, ids ...K) ([]E, error) {
	snap, err := p.load(ctx, sc)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return snap.items, nil
	}

	want := make(map[K]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	matched := make([]E, 0, len(want))
	for _, e := range snap.items {
		if _, ok := want[p.opts.Identity(e)]; ok {
			matched = append(matched, e)
		}
	}
	return p.inOrder(batch.Dedupe(ids), matched), nil
}

func (p *FullDataSetPolicy[K, E]) Exists(ctx context.Context, sc *scope.Scope, id K) (bool, error) {
	_, found, err := p.Get(ctx, sc, id)
	return found, err
}

// Filter returns the cached entities matching pred.
func (p *FullDataSetPolicy[K, E]) Filter(ctx context.Context, sc *scope.Scope, pred func(E) bool) ([]E, error) {
	snap, err := p.load(ctx, sc)
	if err != nil {
		return nil, err
	}
	var out []E
	for _, e := range snap.items {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Query is unsupported: membership is resolved by scanning the cached set,
// see Filter.
func (p *FullDataSetPolicy[K, E]) Query(context.Context, *scope.Scope, any) ([]E, error) {
	return nil, ErrUnsupportedOperation
}

// Create drops the cached set before and after persisting, so a reload
// racing with the write cannot keep the old set.
func (p *FullDataSetPolicy[K, E]) Create(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	return p.write(ctx, sc, e, persist)
}

func (p *FullDataSetPolicy[K, E]) Update(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	return p.write(ctx, sc, e, persist)
}

func (p *FullDataSetPolicy[K, E]) Delete(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	return p.write(ctx, sc, e, persist)
}

func (p *FullDataSetPolicy[K, E]) write(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	part, err := p.partition(sc)
	if err != nil {
		return err
	}
	p.invalidate(sc, part, cache.AllKey)
	err = persist(ctx, sc, e)
	p.clear(sc, part, cache.AllKey)
	return err
}

func (p *FullDataSetPolicy[K, E]) ClearAll(_ context.Context, sc *scope.Scope) error {
	part, err := p.partition(sc)
	if err != nil {
		return err
	}
	p.invalidateAll(sc, part)
	return nil
}

// LookupID resolves an index code to an id.
func (p *FullDataSetPolicy[K, E]) LookupID(ctx context.Context, sc *scope.Scope, code string) (K, bool, error) {
	var zero K
	if p.index == nil {
		return zero, false, ErrUnsupportedOperation
	}
	snap, err := p.load(ctx, sc)
	if err != nil {
		return zero, false, err
	}
	if !snap.shared {
		for _, e := range snap.items {
			if p.opts.IndexBy(e) == code {
				return p.opts.Identity(e), true, nil
			}
		}
		return zero, false, nil
	}
	id, ok := p.index.id(snap.raw, code, p.build(snap.items))
	return id, ok, nil
}

// LookupKey resolves an id to its index code.
func (p *FullDataSetPolicy[K, E]) LookupKey(ctx context.Context, sc *scope.Scope, id K) (string, bool, error) {
	if p.index == nil {
		return "", false, ErrUnsupportedOperation
	}
	snap, err := p.load(ctx, sc)
	if err != nil {
		return "", false, err
	}
	if !snap.shared {
		for _, e := range snap.items {
			if p.opts.Identity(e) == id {
				return p.opts.IndexBy(e), true, nil
			}
		}
		return "", false, nil
	}
	code, ok := p.index.code(snap.raw, id, p.build(snap.items))
	return code, ok, nil
}

func (p *FullDataSetPolicy[K, E]) build(items []E) func() (map[string]K, map[K]string) {
	return func() (map[string]K, map[K]string) {
		byCode := make(map[string]K, len(items))
		byID := make(map[K]string, len(items))
		for _, e := range items {
			code, id := p.opts.IndexBy(e), p.opts.Identity(e)
			byCode[code] = id
			byID[id] = code
		}
		return byCode, byID
	}
}

// derivedIndex maps codes to ids for the shared snapshot. It is rebuilt,
// under its own lock, whenever the snapshot bytes change.
type derivedIndex[K comparable] struct {
	mu     sync.RWMutex
	built  bool
	digest uint64
	byCode map[string]K
	byID   map[K]string
}

func (ix *derivedIndex[K]) id(raw []byte, code string, build func() (map[string]K, map[K]string)) (K, bool) {
	ix.ensure(raw, build)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.byCode[code]
	return id, ok
}

func (ix *derivedIndex[K]) code(raw []byte, id K, build func() (map[string]K, map[K]string)) (string, bool) {
	ix.ensure(raw, build)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	code, ok := ix.byID[id]
	return code, ok
}

func (ix *derivedIndex[K]) ensure(raw []byte, build func() (map[string]K, map[K]string)) {
	digest := xxhash.Sum64(raw)

	ix.mu.RLock()
	fresh := ix.built && ix.digest == digest
	ix.mu.RUnlock()
	if fresh {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.built && ix.digest == digest {
		return
	}
	ix.byCode, ix.byID = build()
	ix.digest = digest
	ix.built = true
}
