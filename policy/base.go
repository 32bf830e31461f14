package policy

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-scopecache/batch"
	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/goliatone/go-scopecache/scope"
)

// base holds what every policy shares: partition resolution, owned-copy
// encoding and traced source access.
type base[K comparable, E any] struct {
	kind Kind
	opts Options[K, E]
	log  logging.Logger
}

func newBase[K comparable, E any](kind Kind, opts Options[K, E]) (base[K, E], error) {
	if err := opts.Validate(); err != nil {
		return base[K, E]{}, err
	}
	opts = opts.withDefaults()
	return base[K, E]{
		kind: kind,
		opts: opts,
		log:  opts.Logger,
	}, nil
}

func (b *base[K, E]) Kind() Kind { return b.kind }

func (b *base[K, E]) partition(sc *scope.Scope) (cache.Partition, error) {
	return b.opts.Resolver.Partition(sc, b.opts.Tag)
}

func (b *base[K, E]) entityKey(id K) string {
	return cache.EntityKey(b.opts.Serializer, id)
}

func (b *base[K, E]) fields() logging.Fields {
	return logging.Fields{"entity": b.opts.Tag, "policy": b.kind.String()}
}

// lookup reads and decodes key. A payload that fails to decode is dropped
// and reported as a miss.
func (b *base[K, E]) lookup(p cache.Partition, key string) (E, bool) {
	var zero E
	raw, ok := p.Get(key)
	if !ok {
		return zero, false
	}
	e, err := b.opts.Codec.Decode(raw)
	if err != nil {
		b.log.Warn("dropping undecodable cache entry", b.fields().With("key", key).With("error", err.Error()))
		p.Clear(key)
		return zero, false
	}
	return e, true
}

// store caches e under key unless the caller has gone away or p was
// invalidated after since was read. It reports whether e was cached.
func (b *base[K, E]) store(ctx context.Context, p cache.Partition, since uint64, key string, e E) bool {
	if ctx.Err() != nil {
		return false
	}
	raw, err := b.opts.Codec.Encode(e)
	if err != nil {
		b.log.Warn("cannot encode entity for caching", b.fields().With("key", key).With("error", err.Error()))
		return false
	}
	return b.insert(p, since, key, raw)
}

func (b *base[K, E]) insert(p cache.Partition, since uint64, key string, raw []byte) bool {
	if cache.InsertSince(p, since, key, raw, b.opts.TTL) {
		return true
	}
	b.log.Debug("invalidated while loading, not caching", b.fields().With("key", key))
	return false
}

// invalidate clears keys from p and enlists them for the shared cache.
func (b *base[K, E]) invalidate(sc *scope.Scope, p cache.Partition, keys ...string) {
	b.clear(sc, p, keys...)
	sc.Enlist(b.opts.Tag, keys...)
	b.opts.Hooks.Invalidated(b.opts.Tag)
}

func (b *base[K, E]) invalidateAll(sc *scope.Scope, p cache.Partition) {
	p.ClearAll()
	for _, ap := range b.enclosing(sc, p) {
		ap.ClearAll()
	}
	sc.Enlist(b.opts.Tag, scope.AllKeys)
	b.opts.Hooks.Invalidated(b.opts.Tag)
}

// clear drops keys from p and from every partition an enclosing scope reads
// through, so the chain reads its own writes back fresh.
func (b *base[K, E]) clear(sc *scope.Scope, p cache.Partition, keys ...string) {
	for _, k := range keys {
		p.Clear(k)
	}
	for _, ap := range b.enclosing(sc, p) {
		for _, k := range keys {
			ap.Clear(k)
		}
	}
}

// enclosing returns the partitions sc's ancestors resolve to, other than p.
// A Scoped child under a Default root reads its own region while the root
// reads the shared cache.
func (b *base[K, E]) enclosing(sc *scope.Scope, p cache.Partition) []cache.Partition {
	var out []cache.Partition
	for a := sc.Parent(); a != nil; a = a.Parent() {
		ap, err := b.opts.Resolver.Partition(a, b.opts.Tag)
		if err != nil || ap == p || slices.Contains(out, ap) {
			continue
		}
		out = append(out, ap)
	}
	return out
}

func (b *base[K, E]) span(ctx context.Context, op string, ids int) (context.Context, trace.Span) {
	return b.opts.Tracer.Start(ctx, "scopecache.fetch", trace.WithAttributes(
		attribute.String("scopecache.entity", b.opts.Tag),
		attribute.String("scopecache.policy", b.kind.String()),
		attribute.String("scopecache.op", op),
		attribute.Int("scopecache.ids", ids),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (b *base[K, E]) fetchOne(ctx context.Context, sc *scope.Scope, id K) (e E, found bool, err error) {
	ctx, span := b.span(ctx, "get", 1)
	defer func() { endSpan(span, err) }()
	return b.opts.Source.PerformGet(ctx, sc, id)
}

func (b *base[K, E]) fetchAll(ctx context.Context, sc *scope.Scope) (items []E, err error) {
	ctx, span := b.span(ctx, "get_all", 0)
	defer func() { endSpan(span, err) }()
	return b.opts.Source.PerformGetAll(ctx, sc, nil)
}

// fetchMany fetches ids in bounded groups.
func (b *base[K, E]) fetchMany(ctx context.Context, sc *scope.Scope, ids []K) ([]E, error) {
	return batch.FetchMany(ctx, ids, b.opts.MaxGroupSize, func(ctx context.Context, group []K) (items []E, err error) {
		ctx, span := b.span(ctx, "get_many", len(group))
		defer func() { endSpan(span, err) }()
		return b.opts.Source.PerformGetAll(ctx, sc, group)
	})
}

// count returns the live count, or ok=false when the source cannot count.
func (b *base[K, E]) count(ctx context.Context, sc *scope.Scope) (n int, ok bool, err error) {
	counter, ok := b.opts.Source.(Counter)
	if !ok {
		return 0, false, nil
	}
	ctx, span := b.span(ctx, "count", 0)
	defer func() { endSpan(span, err) }()
	n, err = counter.PerformCount(ctx, sc)
	return n, true, err
}

func (b *base[K, E]) exists(ctx context.Context, sc *scope.Scope, id K) (found bool, ok bool, err error) {
	checker, ok := b.opts.Source.(ExistenceChecker[K])
	if !ok {
		return false, false, nil
	}
	ctx, span := b.span(ctx, "exists", 1)
	defer func() { endSpan(span, err) }()
	found, err = checker.PerformExists(ctx, sc, id)
	return found, true, err
}

func (b *base[K, E]) query(ctx context.Context, sc *scope.Scope, q any) (items []E, err error) {
	querier, ok := b.opts.Source.(Querier[E])
	if !ok {
		return nil, ErrUnsupportedOperation
	}
	ctx, span := b.span(ctx, "query", 0)
	defer func() { endSpan(span, err) }()
	return querier.PerformQuery(ctx, sc, q)
}

// inOrder returns the items matching ids in ids order. ids must be unique.
func (b *base[K, E]) inOrder(ids []K, items []E) []E {
	byID := make(map[K]E, len(items))
	for _, e := range items {
		byID[b.opts.Identity(e)] = e
	}
	out := make([]E, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}
