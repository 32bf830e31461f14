// Package repositories holds the reference repositories of the engine, one
// per cache policy:
//
//   - Languages and Domains cache their whole (small) table as one entry.
//   - RelationTypes caches entities one by one plus a validated full set.
//   - DictionaryItems caches single items only; the table is large and mostly
//     read by key.
//   - ServerRegistrations is never cached; it changes on every heartbeat.
//
// All of them persist through bun inside the caller's scope transaction.
package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/repositorycache"
	"github.com/goliatone/go-scopecache/scope"
	"github.com/goliatone/go-scopecache/source/bunsource"
	"github.com/goliatone/go-scopecache/storage"
)

// Entity tags, also used as isolated cache partition names.
const (
	TagLanguage           = "language"
	TagDomain             = "domain"
	TagRelationType       = "relation-type"
	TagDictionaryItem     = "dictionary-item"
	TagServerRegistration = "server-registration"
)

// Options carries what every repository needs.
type Options struct {
	Resolver *scope.Resolver

	// DB resolves the query target of a scope. Defaults to storage.IDB.
	DB           bunsource.DBFunc
	Logger       logging.Logger
	Hooks        policy.Hooks
	TTL          time.Duration
	MaxGroupSize int
}

func (o Options) db() bunsource.DBFunc {
	if o.DB == nil {
		return storage.IDB
	}
	return o.DB
}

func policyOptions[E any](o Options, tag string, identity func(E) int, src policy.Source[int, E]) policy.Options[int, E] {
	return policy.Options[int, E]{
		Tag:          tag,
		Identity:     identity,
		Source:       src,
		Resolver:     o.Resolver,
		Serializer:   cache.NewDefaultKeySerializer(),
		TTL:          o.TTL,
		MaxGroupSize: o.MaxGroupSize,
		Logger:       o.Logger,
		Hooks:        o.Hooks,
	}
}

func source[E any](o Options, newModel func() E) *bunsource.Source[int, E] {
	return bunsource.New[int](newModel, bunsource.WithDB(o.db()))
}

func facade[E any](o Options, tag string, p policy.Policy[int, E], persister repositorycache.Persister[E]) *repositorycache.CachedRepository[int, E] {
	return repositorycache.New[int, E](p, persister,
		repositorycache.WithLogger[int, E](o.Logger),
		repositorycache.WithTag[int, E](tag),
	)
}

// first runs q and returns its first row.
func first[E any](ctx context.Context, sc *scope.Scope, repo *repositorycache.CachedRepository[int, E], q bunsource.Query) (E, bool, error) {
	var zero E
	rows, err := repo.GetByQuery(ctx, sc, q)
	if err != nil || len(rows) == 0 {
		return zero, false, err
	}
	return rows[0], true, nil
}

func where(clause string, args ...any) bunsource.Query {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(clause, args...)
	}
}
