package scope

import (
	"context"

	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/pkg/logging"
)

// Provider begins root scopes over a shared set of isolated caches.
type Provider struct {
	caches     *cache.IsolatedCaches
	transactor Transactor
	logger     logging.Logger
	resolver   *Resolver
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithTransactor sets the Transactor used by root scopes to begin their
// transaction lazily.
func WithTransactor(t Transactor) ProviderOption {
	return func(p *Provider) {
		p.transactor = t
	}
}

// WithLogger sets the logger used for scope lifecycle events.
func WithLogger(l logging.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logging.OrNop(l)
	}
}

func NewProvider(caches *cache.IsolatedCaches, opts ...ProviderOption) *Provider {
	p := &Provider{
		caches: caches,
		logger: logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.resolver = &Resolver{caches: caches}
	return p
}

// Caches returns the isolated caches shared by every scope of p.
func (p *Provider) Caches() *cache.IsolatedCaches {
	return p.caches
}

// Resolver returns the cache mode resolver bound to p's caches.
func (p *Provider) Resolver() *Resolver {
	return p.resolver
}

// Begin starts a root scope. A root scope without an explicit mode runs in
// Default mode.
func (p *Provider) Begin(ctx context.Context, opts ...Option) (*Scope, error) {
	o := applyOptions(opts)

	mode := o.mode
	if mode == Unspecified {
		mode = Default
	}
	sc := newScope(p, nil, mode)
	if mode == Scoped {
		sc.region = cache.NewRegion()
		sc.ownsRegion = true
	}

	p.logger.Debug("scope begin", logging.Fields{"scope": sc.id.String(), "mode": mode.String()})
	return sc, nil
}
