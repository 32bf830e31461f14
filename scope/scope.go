package scope

import (
	"context"
	"sort"
	"sync"

	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/google/uuid"
)

// AllKeys passed to Enlist clears the whole partition when the root scope
// is disposed.
const AllKeys = "*"

// Option configures a scope at Begin.
type Option func(*beginOptions)

type beginOptions struct {
	mode CacheMode
}

// WithCacheMode declares the scope's cache mode. Unspecified inherits.
func WithCacheMode(mode CacheMode) Option {
	return func(o *beginOptions) {
		o.mode = mode
	}
}

func applyOptions(opts []Option) beginOptions {
	var o beginOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Scope is a unit of work with a fixed cache mode. Scopes nest: the root
// owns the transaction and the pending cache invalidations, and a Scoped
// scope owns a Region unless its parent already provides one.
//
// A Scope is used by one request at a time but is safe for concurrent use.
type Scope struct {
	id         uuid.UUID
	provider   *Provider
	parent     *Scope
	mode       CacheMode
	region     *cache.Region
	ownsRegion bool

	mu        sync.Mutex
	children  int
	completed bool
	disposed  bool

	// root only
	failed  bool
	tx      Tx
	pending map[string]map[string]struct{}
}

func newScope(p *Provider, parent *Scope, mode CacheMode) *Scope {
	return &Scope{
		id:       uuid.New(),
		provider: p,
		parent:   parent,
		mode:     mode,
	}
}

// Begin starts a child scope. The child inherits the parent's cache mode
// unless it declares one; it may not declare a lower one.
func (s *Scope) Begin(ctx context.Context, opts ...Option) (*Scope, error) {
	o := applyOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrScopeDisposed
	}

	mode := o.mode
	switch {
	case mode == Unspecified:
		mode = s.mode
	case mode < s.mode:
		return nil, ErrInvalidCacheMode
	}

	child := newScope(s.provider, s, mode)
	if mode == Scoped {
		if s.mode == Scoped && s.region != nil {
			child.region = s.region
		} else {
			child.region = cache.NewRegion()
			child.ownsRegion = true
		}
	}
	s.children++

	s.provider.logger.Debug("scope begin", logging.Fields{
		"scope":  child.id.String(),
		"parent": s.id.String(),
		"mode":   mode.String(),
	})
	return child, nil
}

// ID identifies the scope in logs.
func (s *Scope) ID() uuid.UUID {
	return s.id
}

// Parent returns nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// CacheMode is resolved at Begin and never changes.
func (s *Scope) CacheMode() CacheMode {
	return s.mode
}

// Region returns the scope's region. It is nil unless the mode is Scoped.
func (s *Scope) Region() *cache.Region {
	return s.region
}

// Complete marks the scope as successful. A scope disposed without being
// completed rolls back the whole chain.
func (s *Scope) Complete() {
	s.mu.Lock()
	s.completed = true
	s.mu.Unlock()
}

func (s *Scope) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *Scope) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Scope) root() *Scope {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Tx returns the root scope's transaction, beginning it on first use.
func (s *Scope) Tx(ctx context.Context) (Tx, error) {
	if s.Disposed() {
		return nil, ErrScopeDisposed
	}

	r := s.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return nil, ErrScopeDisposed
	}
	if r.tx != nil {
		return r.tx, nil
	}
	if r.provider.transactor == nil {
		return nil, ErrNoTransactor
	}

	tx, err := r.provider.transactor.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	r.tx = tx
	return tx, nil
}

// Enlist records isolated cache keys written in this scope chain. They are
// cleared from the isolated caches when the root scope is disposed,
// committed or not. AllKeys clears the whole partition.
func (s *Scope) Enlist(tag string, keys ...string) {
	if len(keys) == 0 {
		return
	}

	r := s.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	if r.pending == nil {
		r.pending = make(map[string]map[string]struct{})
	}
	set, ok := r.pending[tag]
	if !ok {
		set = make(map[string]struct{}, len(keys))
		r.pending[tag] = set
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
}

// Dispose ends the scope. A child reports its completion to its parent; the
// root commits when every scope in the chain completed and rolls back
// otherwise, then clears the enlisted keys from the isolated caches.
// Disposing twice is a no-op.
func (s *Scope) Dispose(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	if s.children > 0 {
		s.mu.Unlock()
		return ErrChildScopeActive
	}
	s.disposed = true
	completed := s.completed
	s.mu.Unlock()

	if s.ownsRegion && s.region != nil {
		s.region.Dispose()
	}

	if s.parent != nil {
		s.parent.childDisposed(completed)
		return nil
	}
	return s.finish(ctx, completed)
}

func (s *Scope) childDisposed(completed bool) {
	s.mu.Lock()
	s.children--
	s.mu.Unlock()

	if !completed {
		r := s.root()
		r.mu.Lock()
		r.failed = true
		r.mu.Unlock()
	}
}

func (s *Scope) finish(ctx context.Context, completed bool) error {
	s.mu.Lock()
	commit := completed && !s.failed
	tx := s.tx
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	logger := s.provider.logger
	fields := logging.Fields{"scope": s.id.String(), "mode": s.mode.String()}

	var err error
	if tx != nil {
		if commit {
			err = tx.Commit(ctx)
			if err != nil {
				logger.Error("scope commit failed", fields.With("error", err.Error()))
			}
		} else {
			err = tx.Rollback(ctx)
			if err != nil {
				logger.Error("scope rollback failed", fields.With("error", err.Error()))
			}
		}
	}

	s.invalidate(pending)

	if commit {
		logger.Debug("scope committed", fields.With("invalidated", len(pending)))
	} else {
		logger.Info("scope rolled back", fields.With("invalidated", len(pending)))
	}
	return err
}

func (s *Scope) invalidate(pending map[string]map[string]struct{}) {
	if len(pending) == 0 {
		return
	}

	tags := make([]string, 0, len(pending))
	for tag := range pending {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		p, ok := s.provider.caches.Partition(tag)
		if !ok {
			continue
		}
		keys := pending[tag]
		if _, all := keys[AllKeys]; all {
			p.ClearAll()
			continue
		}
		for k := range keys {
			p.Clear(k)
		}
	}
}
