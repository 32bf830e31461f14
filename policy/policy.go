package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-scopecache/scope"
)

// Kind names a caching strategy.
type Kind int

const (
	// KindDefault caches entities one by one plus a validated full-set marker.
	KindDefault Kind = iota + 1
	// KindFullDataSet caches the whole set as a single entry.
	KindFullDataSet
	// KindSingleItemsOnly caches single entities but never full sets.
	KindSingleItemsOnly
	// KindNoCache never caches.
	KindNoCache
)

func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindFullDataSet:
		return "full-dataset"
	case KindSingleItemsOnly:
		return "single-items-only"
	case KindNoCache:
		return "no-cache"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names returned by String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default", "":
		return KindDefault, nil
	case "full-dataset", "fulldataset":
		return KindFullDataSet, nil
	case "single-items-only", "singleitemsonly":
		return KindSingleItemsOnly, nil
	case "no-cache", "nocache", "none":
		return KindNoCache, nil
	}
	return 0, fmt.Errorf("policy: unknown kind %q", s)
}

// Policy is the cache strategy of one entity type. All calls need a live
// scope; the scope's cache mode decides which partition is used.
type Policy[K comparable, E any] interface {
	Kind() Kind

	// Get returns the entity with id, fetching and caching it on a miss.
	Get(ctx context.Context, sc *scope.Scope, id K) (E, bool, error)
	// GetCached never fetches.
	GetCached(ctx context.Context, sc *scope.Scope, id K) (E, bool, error)
	// GetMany returns the entities for ids in first-seen order, skipping
	// unknown ids. No ids means every entity of the type.
	GetMany(ctx context.Context, sc *scope.Scope, ids ...K) ([]E, error)
	Exists(ctx context.Context, sc *scope.Scope, id K) (bool, error)
	// Query runs an uncached query through the source.
	Query(ctx context.Context, sc *scope.Scope, q any) ([]E, error)

	Create(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error
	Update(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error
	Delete(ctx context.Context, sc *scope.Scope, e E, persist PersistFunc[E]) error

	// ClearAll drops everything cached for the type in the scope's cache and
	// clears the shared cache when the root scope ends.
	ClearAll(ctx context.Context, sc *scope.Scope) error
}

// New builds the policy of the given kind.
func New[K comparable, E any](kind Kind, opts Options[K, E]) (Policy[K, E], error) {
	var (
		p   Policy[K, E]
		err error
	)
	switch kind {
	case KindDefault:
		p, err = NewDefault(opts)
	case KindFullDataSet:
		p, err = NewFullDataSet(opts)
	case KindSingleItemsOnly:
		p, err = NewSingleItemsOnly(opts)
	case KindNoCache:
		p, err = NewNoCache(opts)
	default:
		err = fmt.Errorf("policy: unknown kind %d", int(kind))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
