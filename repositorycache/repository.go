package repositorycache

import (
	"context"
	"errors"

	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/scope"
)

// Persister writes entities. Each method runs inside the scope it is given,
// typically through the scope's transaction.
type Persister[E any] interface {
	PersistNew(ctx context.Context, sc *scope.Scope, e E) error
	PersistUpdated(ctx context.Context, sc *scope.Scope, e E) error
	PersistDeleted(ctx context.Context, sc *scope.Scope, e E) error
}

// Identifiable entities report whether they were persisted before.
type Identifiable interface {
	HasIdentity() bool
}

// DirtyTracker entities report unsaved changes. Embed Tracking to get one.
type DirtyTracker interface {
	IsDirty() bool
	ResetDirty()
}

// CachedRepository is the repository surface callers use. Reads and writes
// go through the entity type's cache policy; writes are delegated to the
// Persister.
type CachedRepository[K comparable, E any] struct {
	policy      policy.Policy[K, E]
	persister   Persister[E]
	hasIdentity func(E) bool
	logger      logging.Logger
	tag         string
}

// Option configures a CachedRepository.
type Option[K comparable, E any] func(*CachedRepository[K, E])

// WithIdentityCheck overrides how Save tells new entities from stored ones.
func WithIdentityCheck[K comparable, E any](fn func(E) bool) Option[K, E] {
	return func(r *CachedRepository[K, E]) {
		if fn != nil {
			r.hasIdentity = fn
		}
	}
}

// WithIdentity derives the identity check from an id accessor: the zero id
// means the entity is new.
func WithIdentity[K comparable, E any](identity func(E) K) Option[K, E] {
	return func(r *CachedRepository[K, E]) {
		if identity == nil {
			return
		}
		r.hasIdentity = func(e E) bool {
			var zero K
			return identity(e) != zero
		}
	}
}

// WithLogger sets the logger used for write events.
func WithLogger[K comparable, E any](l logging.Logger) Option[K, E] {
	return func(r *CachedRepository[K, E]) {
		r.logger = logging.OrNop(l)
	}
}

// WithTag names the entity type in log fields.
func WithTag[K comparable, E any](tag string) Option[K, E] {
	return func(r *CachedRepository[K, E]) {
		r.tag = tag
	}
}

// New creates a repository over p that writes through persister.
//
// Without an identity option, entities implementing Identifiable decide for
// themselves, and everything else is inspected with ReflectIdentity.
func New[K comparable, E any](p policy.Policy[K, E], persister Persister[E], opts ...Option[K, E]) *CachedRepository[K, E] {
	r := &CachedRepository[K, E]{
		policy:      p,
		persister:   persister,
		hasIdentity: defaultIdentityCheck[K, E],
		logger:      logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy exposes the underlying cache policy.
func (r *CachedRepository[K, E]) Policy() policy.Policy[K, E] {
	return r.policy
}

// Get returns the entity with id.
func (r *CachedRepository[K, E]) Get(ctx context.Context, sc *scope.Scope, id K) (E, bool, error) {
	return r.policy.Get(ctx, sc, id)
}

// GetMany returns the entities for ids, or all of them when ids is empty.
func (r *CachedRepository[K, E]) GetMany(ctx context.Context, sc *scope.Scope, ids ...K) ([]E, error) {
	return r.policy.GetMany(ctx, sc, ids...)
}

func (r *CachedRepository[K, E]) Exists(ctx context.Context, sc *scope.Scope, id K) (bool, error) {
	return r.policy.Exists(ctx, sc, id)
}

// GetByQuery runs an uncached query. The query value is whatever the
// underlying source understands.
func (r *CachedRepository[K, E]) GetByQuery(ctx context.Context, sc *scope.Scope, q any) ([]E, error) {
	return r.policy.Query(ctx, sc, q)
}

// Save creates e when it has no identity yet and updates it otherwise.
// Entities that track changes are only written when dirty, and are marked
// clean once the write succeeds.
func (r *CachedRepository[K, E]) Save(ctx context.Context, sc *scope.Scope, e E) error {
	tracker, tracked := any(e).(DirtyTracker)

	var err error
	switch {
	case !r.hasIdentity(e):
		err = r.policy.Create(ctx, sc, e, r.persister.PersistNew)
		r.logWrite("create", err)
	case tracked && !tracker.IsDirty():
		return nil
	default:
		err = r.policy.Update(ctx, sc, e, r.persister.PersistUpdated)
		r.logWrite("update", err)
	}
	if err != nil {
		return err
	}
	if tracked {
		tracker.ResetDirty()
	}
	return nil
}

// Delete removes e. Deleting an entity that is already gone is not an error
// as long as the Persister treats it that way.
func (r *CachedRepository[K, E]) Delete(ctx context.Context, sc *scope.Scope, e E) error {
	err := r.policy.Delete(ctx, sc, e, r.persister.PersistDeleted)
	r.logWrite("delete", err)
	return err
}

// ClearAll drops every cached entity of the type.
func (r *CachedRepository[K, E]) ClearAll(ctx context.Context, sc *scope.Scope) error {
	return r.policy.ClearAll(ctx, sc)
}

func (r *CachedRepository[K, E]) logWrite(op string, err error) {
	fields := logging.Fields{"op": op, "policy": r.policy.Kind().String()}
	if r.tag != "" {
		fields["entity"] = r.tag
	}
	if err == nil {
		r.logger.Debug("entity written", fields)
		return
	}
	if errors.Is(err, scope.ErrScopeRequired) || errors.Is(err, scope.ErrScopeDisposed) {
		return
	}
	r.logger.Warn("entity write failed", fields.With("error", err.Error()))
}

func defaultIdentityCheck[K comparable, E any](e E) bool {
	if id, ok := any(e).(Identifiable); ok {
		return id.HasIdentity()
	}
	var zero K
	id, ok := ReflectIdentity[K](e)
	return ok && id != zero
}
