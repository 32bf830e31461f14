package policy

import (
	"context"

	"github.com/goliatone/go-scopecache/batch"
	"github.com/goliatone/go-scopecache/scope"
)

// NoCachePolicy passes every call through to the source. It still insists
// on a live scope and still bounds bulk fetches.
type NoCachePolicy[K comparable, E any] struct {
	base[K, E]
}

func NewNoCache[K comparable, E any](opts Options[K, E]) (*NoCachePolicy[K, E], error) {
	b, err := newBase(KindNoCache, opts)
	if err != nil {
		return nil, err
	}
	return &NoCachePolicy[K, E]{base: b}, nil
}

func (p *NoCachePolicy[K, E]) check(sc *scope.Scope) error {
	_, err := p.partition(sc)
	return err
}

func (p *NoCachePolicy[K, E]) Get(ctx context.Context, sc *scope.Scope, id K) (E, bool, error) {
	if err := p.check(sc); err != nil {
		var zero E
		return zero, false, err
	}
	return p.fetchOne(ctx, sc, id)
}

// GetCached always misses.
func (p *NoCachePolicy[K, E]) GetCached(_ context.Context, sc *scope.Scope, _ K) (E, bool, error) {
	var zero E
	return zero, false, p.check(sc)
}

func (p *NoCachePolicy[K, E]) GetMany(ctx context.Context, sc *scope.Scope, ids ...K) ([]E, error) {
	if err := p.check(sc); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return p.fetchAll(ctx, sc)
	}
	ids = batch.Dedupe(ids)
	items, err := p.fetchMany(ctx, sc, ids)
	if err != nil {
		return nil, err
	}
	return p.inOrder(ids, items), nil
}

func (p *NoCachePolicy[K, E]) Exists(ctx context.Context, sc *scope.Scope, id K) (bool, error) {
	if err := p.check(sc); err != nil {
		return false, err
	}
	found, ok, err := p.exists(ctx, sc, id)
	if ok || err != nil {
		return found, err
	}
	_, found, err = p.fetchOne(ctx, sc, id)
	return found, err
}

func (p *NoCachePolicy[K, E]) Query(ctx context.Context, sc *scope.Scope, q any) ([]E, error) {
	if err := p.check(sc); err != nil {
		return nil, err
	}
	return p.query(ctx, sc, q)
}

func (p *NoCachePolicy[K, E]) Create(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	return p.write(ctx, sc, e, persist)
}

func (p *NoCachePolicy[K, E]) Update(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	return p.write(ctx, sc, e, persist)
}

func (p *NoCachePolicy[K, E]) Delete(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	return p.write(ctx, sc, e, persist)
}

func (p *NoCachePolicy[K, E]) write(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error {
	if err := p.check(sc); err != nil {
		return err
	}
	return persist(ctx, sc, e)
}

// ClearAll has nothing to clear.
func (p *NoCachePolicy[K, E]) ClearAll(_ context.Context, sc *scope.Scope) error {
	return p.check(sc)
}
