package policy

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-scopecache/batch"
	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/scope"
)

// fullSetMarker records that every entity of a type is cached, and under
// which keys.
type fullSetMarker struct {
	Count int      `msgpack:"c"`
	Keys  []string `msgpack:"k"`
}

// DefaultPolicy caches entities one by one. A full set read additionally
// caches a marker holding the set's size and keys; the marker is trusted
// only while the source's live count agrees with it.
//
// The single items only variant shares this type with full set caching
// turned off.
type DefaultPolicy[K comparable, E any] struct {
	base[K, E]
	bulk bool
}

// NewDefault builds a DefaultPolicy.
func NewDefault[K comparable, E any](opts Options[K, E]) (*DefaultPolicy[K, E], error) {
	b, err := newBase(KindDefault, opts)
	if err != nil {
		return nil, err
	}
	return &DefaultPolicy[K, E]{base: b, bulk: true}, nil
}

// NewSingleItemsOnly builds a policy that caches single entities like
// DefaultPolicy but never caches full sets or bulk results. It suits types
// whose size is unbounded.
func NewSingleItemsOnly[K comparable, E any](opts Options[K, E]) (*DefaultPolicy[K, E], error) {
	b, err := newBase(KindSingleItemsOnly, opts)
	if err != nil {
		return nil, err
	}
	return &DefaultPolicy[K, E]{base: b}, nil
}

func (p *DefaultPolicy[K, E]) Get(ctx context.Context, sc *scope.Scope, id K) (E, bool, error) {
	var zero E
	part, err := p.partition(sc)
	if err != nil {
		return zero, false, err
	}

	key := p.entityKey(id)
	if e, ok := p.lookup(part, key); ok {
		p.opts.Hooks.Hit(p.opts.Tag)
		return e, true, nil
	}
	p.opts.Hooks.Miss(p.opts.Tag)

	since := cache.VersionOf(part)
	e, found, err := p.fetchOne(ctx, sc, id)
	if err != nil || !found {
		return zero, false, err
	}
	p.store(ctx, part, since, key, e)
	return e, true, nil
}

func (p *DefaultPolicy[K, E]) GetCached(_ context.Context, sc *scope.Scope, id K) (E, bool, error) {
	var zero E
	part, err := p.partition(sc)
	if err != nil {
		return zero, false, err
	}
	e, ok := p.lookup(part, p.entityKey(id))
	return e, ok, nil
}

func (p *DefaultPolicy[K, E]) GetMany(ctx context.Context, sc *scope.Scope, ids ...K) ([]E, error) {
	part, err := p.partition(sc)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		if !p.bulk {
			return p.fetchAll(ctx, sc)
		}
		return p.getAll(ctx, sc, part)
	}

	ids = batch.Dedupe(ids)
	hits := make([]E, 0, len(ids))
	var misses []K
	for _, id := range ids {
		if e, ok := p.lookup(part, p.entityKey(id)); ok {
			hits = append(hits, e)
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		p.opts.Hooks.Hit(p.opts.Tag)
		return p.inOrder(ids, hits), nil
	}
	p.opts.Hooks.Miss(p.opts.Tag)

	since := cache.VersionOf(part)
	fetched, err := p.fetchMany(ctx, sc, misses)
	if err != nil {
		return nil, err
	}
	if p.bulk {
		for _, e := range fetched {
			p.store(ctx, part, since, p.entityKey(p.opts.Identity(e)), e)
		}
	}
	return p.inOrder(ids, append(hits, fetched...)), nil
}

// getAll serves the full set from the marker when it is still valid and
// reloads it otherwise.
func (p *DefaultPolicy[K, E]) getAll(ctx context.Context, sc *scope.Scope, part cache.Partition) ([]E, error) {
	fields := p.fields()

	live := -1
	if raw, ok := part.Get(cache.AllKey); ok {
		var marker fullSetMarker
		if err := msgpack.Unmarshal(raw, &marker); err != nil {
			p.log.Warn("dropping undecodable full set marker", fields.With("error", err.Error()))
			part.Clear(cache.AllKey)
		} else {
			items, valid, n, err := p.fromMarker(ctx, sc, part, marker)
			if err != nil {
				return nil, err
			}
			if valid {
				p.opts.Hooks.Hit(p.opts.Tag)
				return items, nil
			}
			live = n
			p.opts.Hooks.Stale(p.opts.Tag)
			// single entries may belong to rows removed behind our back
			part.ClearAll()
		}
	}
	p.opts.Hooks.Miss(p.opts.Tag)

	since := cache.VersionOf(part)
	items, err := p.fetchAll(ctx, sc)
	if err != nil {
		return nil, err
	}
	p.opts.Hooks.Reload(p.opts.Tag, len(items))

	if live >= 0 && live != len(items) {
		p.log.Warn("live count and full set size disagree", fields.With("count", live).With("items", len(items)))
	}

	if len(items) == 0 && !p.opts.AllowZeroCount {
		return items, nil
	}
	p.storeAll(ctx, part, since, items)
	return items, nil
}

// fromMarker resolves a marker to its entities. valid is false when the
// live count moved or an entry is gone; n carries the live count when it
// was read.
func (p *DefaultPolicy[K, E]) fromMarker(ctx context.Context, sc *scope.Scope, part cache.Partition, marker fullSetMarker) (items []E, valid bool, n int, err error) {
	n = -1
	if marker.Count == 0 && !p.opts.AllowZeroCount {
		return nil, false, n, nil
	}

	if !p.opts.SkipCountValidation {
		live, ok, err := p.count(ctx, sc)
		if err != nil {
			return nil, false, n, err
		}
		if ok {
			n = live
			if live != marker.Count {
				p.log.Debug("full set count changed, reloading", p.fields().With("cached", marker.Count).With("live", live))
				return nil, false, n, nil
			}
		}
	}

	items = make([]E, 0, len(marker.Keys))
	for _, key := range marker.Keys {
		e, ok := p.lookup(part, key)
		if !ok {
			p.log.Debug("full set entry missing, reloading", p.fields().With("key", key))
			return nil, false, n, nil
		}
		items = append(items, e)
	}
	return items, true, n, nil
}

// storeAll caches items and their marker. The marker is skipped when any
// entry was refused, since it would only point at missing entries.
func (p *DefaultPolicy[K, E]) storeAll(ctx context.Context, part cache.Partition, since uint64, items []E) {
	if ctx.Err() != nil {
		return
	}
	marker := fullSetMarker{Count: len(items), Keys: make([]string, 0, len(items))}
	for _, e := range items {
		key := p.entityKey(p.opts.Identity(e))
		if !p.store(ctx, part, since, key, e) {
			return
		}
		marker.Keys = append(marker.Keys, key)
	}
	raw, err := msgpack.Marshal(marker)
	if err != nil {
		p.log.Warn("cannot encode full set marker", p.fields().With("error", err.Error()))
		return
	}
	p.insert(part, since, cache.AllKey, raw)
}

// Exists answers from cache presence without decoding, then from the
// source's existence check, then by fetching.
func (p *DefaultPolicy[K, E]) Exists(ctx context.Context, sc *scope.Scope, id K) (bool, error) {
	part, err := p.partition(sc)
	if err != nil {
		return false, err
	}
	if _, ok := part.Get(p.entityKey(id)); ok {
		p.opts.Hooks.Hit(p.opts.Tag)
		return true, nil
	}

	found, ok, err := p.exists(ctx, sc, id)
	if ok || err != nil {
		return found, err
	}
	_, found, err = p.Get(ctx, sc, id)
	return found, err
}

func (p *DefaultPolicy[K, E]) Query(ctx context.Context, sc *scope.Scope, q any) ([]E, error) {
	if _, err := p.partition(sc); err != nil {
		return nil, err
	}
	return p.query(ctx, sc, q)
}

// Create persists e and then invalidates its entry and the full set marker.
// The cache is invalidated even when persisting fails, since the write may
// have partly happened.
func (p *DefaultPolicy[K, E]) Create(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	return p.write(ctx, sc, e, persist)
}

func (p *DefaultPolicy[K, E]) Update(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	return p.write(ctx, sc, e, persist)
}

// Delete persists the removal and then drops the entry whether or not it
// was cached, so deleting twice is harmless.
func (p *DefaultPolicy[K, E]) Delete(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	return p.write(ctx, sc, e, persist)
}

func (p *DefaultPolicy[K, E]) write(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	part, err := p.partition(sc)
	if err != nil {
		return err
	}
	err = persist(ctx, sc, e)
	p.invalidate(sc, part, p.entityKey(p.opts.Identity(e)), cache.AllKey)
	return err
}

func (p *DefaultPolicy[K, E]) ClearAll(_ context.Context, sc *scope.Scope) error {
	part, err := p.partition(sc)
	if err != nil {
		return err
	}
	p.invalidateAll(sc, part)
	return nil
}
