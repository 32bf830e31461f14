// Package di wires the cache engine together: isolated caches, the scope
// provider, storage, logging and metrics.
package di

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/goliatone/go-scopecache/pkg/metrics"
	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/repositories"
	"github.com/goliatone/go-scopecache/repositorycache"
	"github.com/goliatone/go-scopecache/scope"
	"github.com/goliatone/go-scopecache/storage"
)

var errNoDB = goerrors.New("container has no database", goerrors.CategoryOperation).
	WithTextCode("NO_DATABASE")

// Container owns the process wide pieces shared by every repository.
type Container struct {
	config     Config
	caches     *cache.IsolatedCaches
	provider   *scope.Provider
	logger     logging.Logger
	hooks      policy.Hooks
	db         *bun.DB
	ownsDB     bool
	transactor scope.Transactor
}

// Option configures a Container.
type Option func(*Container)

// WithLogger overrides the logger built from Config.Log.
func WithLogger(l logging.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// WithHooks overrides the metrics hooks built from Config.Metrics.
func WithHooks(h policy.Hooks) Option {
	return func(c *Container) { c.hooks = h }
}

// WithDB uses db for scope transactions. The caller keeps ownership.
func WithDB(db *bun.DB) Option {
	return func(c *Container) { c.db = db }
}

// WithTransactor sets the transaction source of root scopes. It takes
// precedence over WithDB.
func WithTransactor(t scope.Transactor) Option {
	return func(c *Container) { c.transactor = t }
}

// NewContainer validates config and builds the shared pieces. Without a
// DB or transactor, scopes run without a transaction.
func NewContainer(config Config, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: config}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		l, err := NewLogger(config.Log)
		if err != nil {
			return nil, err
		}
		c.logger = l
	}

	if c.hooks == nil && config.Metrics.Enabled {
		h, err := metrics.NewPrometheusHooks(nil, config.Metrics.Namespace)
		if err != nil {
			return nil, err
		}
		c.hooks = h
	}

	caches, err := cache.NewIsolatedCaches(config.Cache, cache.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.caches = caches

	popts := []scope.ProviderOption{scope.WithLogger(c.logger)}
	switch {
	case c.transactor != nil:
		popts = append(popts, scope.WithTransactor(c.transactor))
	case c.db != nil:
		c.transactor = storage.NewTransactor(c.db, nil)
		popts = append(popts, scope.WithTransactor(c.transactor))
	}
	c.provider = scope.NewProvider(caches, popts...)

	c.logger.Debug("container ready", logging.Fields{
		"cache_backend": config.Cache.Backend,
		"transactional": c.transactor != nil,
		"metrics":       c.hooks != nil,
	})
	return c, nil
}

// NewContainerWithDefaults creates a container using DefaultConfig.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(DefaultConfig(), opts...)
}

// Open connects to config.Storage and builds a container that owns the
// connection.
func Open(ctx context.Context, config Config, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	db, err := storage.Open(ctx, config.Storage)
	if err != nil {
		return nil, err
	}

	c, err := NewContainer(config, append(opts, WithDB(db))...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.ownsDB = true
	return c, nil
}

func (c *Container) Config() Config                { return c.config }
func (c *Container) Caches() *cache.IsolatedCaches { return c.caches }
func (c *Container) Provider() *scope.Provider     { return c.provider }
func (c *Container) Resolver() *scope.Resolver     { return c.provider.Resolver() }
func (c *Container) Logger() logging.Logger        { return c.logger }
func (c *Container) Hooks() policy.Hooks           { return c.hooks }

// DB returns the database handle, or nil when the container has none.
func (c *Container) DB() *bun.DB { return c.db }

// Begin starts a root scope.
func (c *Container) Begin(ctx context.Context, opts ...scope.Option) (*scope.Scope, error) {
	return c.provider.Begin(ctx, opts...)
}

// WithTransaction runs fn in a root scope and commits when fn succeeds.
func (c *Container) WithTransaction(ctx context.Context, fn func(ctx context.Context, sc *scope.Scope) error, opts ...scope.Option) error {
	return scope.WithTransaction(ctx, c.provider, fn, opts...)
}

// RepositoryOptions returns the options shared by the reference
// repositories.
func (c *Container) RepositoryOptions() repositories.Options {
	return repositories.Options{
		Resolver:     c.Resolver(),
		Logger:       c.logger,
		Hooks:        c.hooks,
		TTL:          c.config.Cache.TTL,
		MaxGroupSize: c.config.MaxGroupSize,
	}
}

// Close releases the caches and, when the container opened it, the
// database.
func (c *Container) Close() error {
	var errs []error
	if err := c.caches.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.ownsDB && c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewPolicy builds a policy of the given kind with the container's
// resolver, logger, hooks and sizing filled in where opts leaves them
// empty. A nil Identity falls back to the entity's ID field.
func NewPolicy[K comparable, E any](c *Container, kind policy.Kind, opts policy.Options[K, E]) (policy.Policy[K, E], error) {
	if opts.Resolver == nil {
		opts.Resolver = c.Resolver()
	}
	if opts.Identity == nil {
		opts.Identity = repositorycache.IdentityFunc[K, E]()
	}
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	if opts.Hooks == nil {
		opts.Hooks = c.hooks
	}
	if opts.TTL == 0 {
		opts.TTL = c.config.Cache.TTL
	}
	if opts.MaxGroupSize == 0 {
		opts.MaxGroupSize = c.config.MaxGroupSize
	}
	return policy.New(kind, opts)
}

// NewCachedRepository builds a policy through NewPolicy and wraps it in a
// repository façade persisting through persister.
func NewCachedRepository[K comparable, E any](c *Container, kind policy.Kind, opts policy.Options[K, E], persister repositorycache.Persister[E], ropts ...repositorycache.Option[K, E]) (*repositorycache.CachedRepository[K, E], error) {
	p, err := NewPolicy(c, kind, opts)
	if err != nil {
		return nil, err
	}
	base := []repositorycache.Option[K, E]{
		repositorycache.WithLogger[K, E](c.logger),
		repositorycache.WithTag[K, E](opts.Tag),
		repositorycache.WithIdentity[K, E](opts.Identity),
	}
	return repositorycache.New(p, persister, append(base, ropts...)...), nil
}

// Repositories groups the reference repositories.
type Repositories struct {
	Languages           *repositories.Languages
	Domains             *repositories.Domains
	RelationTypes       *repositories.RelationTypes
	DictionaryItems     *repositories.DictionaryItems
	ServerRegistrations *repositories.ServerRegistrations
}

// Repositories builds the reference repositories over the container's
// database. CreateSchema is run first when migrate is true.
func (c *Container) Repositories(ctx context.Context, migrate bool) (*Repositories, error) {
	if c.db == nil {
		return nil, errNoDB
	}
	if migrate {
		if err := repositories.CreateSchema(ctx, c.db); err != nil {
			return nil, err
		}
	}

	o := c.RepositoryOptions()
	var (
		r   Repositories
		err error
	)
	if r.Languages, err = repositories.NewLanguages(o); err != nil {
		return nil, err
	}
	if r.Domains, err = repositories.NewDomains(o); err != nil {
		return nil, err
	}
	if r.RelationTypes, err = repositories.NewRelationTypes(o); err != nil {
		return nil, err
	}
	if r.DictionaryItems, err = repositories.NewDictionaryItems(o); err != nil {
		return nil, err
	}
	if r.ServerRegistrations, err = repositories.NewServerRegistrations(o); err != nil {
		return nil, err
	}
	return &r, nil
}
