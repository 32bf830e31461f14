package repositories

import (
	"context"
	"sort"
	"strings"

	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/repositorycache"
	"github.com/goliatone/go-scopecache/scope"
)

// Domains caches every domain as one entry. Lookups filter the cached set.
type Domains struct {
	*repositorycache.CachedRepository[int, *Domain]

	set *policy.FullDataSetPolicy[int, *Domain]
}

func NewDomains(o Options) (*Domains, error) {
	src := source(o, func() *Domain { return &Domain{} })
	set, err := policy.NewFullDataSet(policyOptions(o, TagDomain, domainID, src))
	if err != nil {
		return nil, err
	}
	return &Domains{
		CachedRepository: facade[*Domain](o, TagDomain, set, src),
		set:              set,
	}, nil
}

// GetByName finds a domain by name, ignoring case.
func (r *Domains) GetByName(ctx context.Context, sc *scope.Scope, name string) (*Domain, bool, error) {
	found, err := r.set.Filter(ctx, sc, func(d *Domain) bool {
		return strings.EqualFold(d.DomainName, name)
	})
	if err != nil || len(found) == 0 {
		return nil, false, err
	}
	return found[0], true, nil
}

func (r *Domains) ExistsByName(ctx context.Context, sc *scope.Scope, name string) (bool, error) {
	_, ok, err := r.GetByName(ctx, sc, name)
	return ok, err
}

// GetAssignedDomains returns the domains of a content root in sort order.
func (r *Domains) GetAssignedDomains(ctx context.Context, sc *scope.Scope, contentID int, includeWildcards bool) ([]*Domain, error) {
	found, err := r.set.Filter(ctx, sc, func(d *Domain) bool {
		if d.RootContentID == nil || *d.RootContentID != contentID {
			return false
		}
		return includeWildcards || !d.IsWildcard()
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].SortOrder < found[j].SortOrder })
	return found, nil
}
