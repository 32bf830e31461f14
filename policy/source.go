package policy

import (
	"context"

	"github.com/goliatone/go-scopecache/scope"
)

// Source is the data access a policy falls back to on a miss. Sources run
// inside the scope they are given, typically through its transaction.
type Source[K comparable, E any] interface {
	// PerformGet fetches one entity. found is false when it does not exist.
	PerformGet(ctx context.Context, sc *scope.Scope, id K) (e E, found bool, err error)
	// PerformGetAll fetches the entities for ids; no ids means all of them.
	// It is never called with more ids than the policy's group size.
	PerformGetAll(ctx context.Context, sc *scope.Scope, ids []K) ([]E, error)
}

// Counter is implemented by sources that can count the whole set. The
// default policy uses it to validate a cached full set.
type Counter interface {
	PerformCount(ctx context.Context, sc *scope.Scope) (int, error)
}

// ExistenceChecker is implemented by sources with a cheap existence check.
type ExistenceChecker[K comparable] interface {
	PerformExists(ctx context.Context, sc *scope.Scope, id K) (bool, error)
}

// Querier is implemented by sources that accept ad hoc queries. The query
// value is opaque to the policy.
type Querier[E any] interface {
	PerformQuery(ctx context.Context, sc *scope.Scope, q any) ([]E, error)
}

// PersistFunc writes one entity.
type PersistFunc[E any] func(ctx context.Context, sc *scope.Scope, e E) error
