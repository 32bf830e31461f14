package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/repositorycache"
	"github.com/goliatone/go-scopecache/scope"
)

// RelationTypes caches relation types one by one. Lookups by alias or key
// query the database and do not populate the cache.
type RelationTypes struct {
	*repositorycache.CachedRepository[int, *RelationType]
}

func NewRelationTypes(o Options) (*RelationTypes, error) {
	src := source(o, func() *RelationType { return &RelationType{} })
	p, err := policy.NewDefault(policyOptions(o, TagRelationType, relationTypeID, src))
	if err != nil {
		return nil, err
	}
	return &RelationTypes{CachedRepository: facade[*RelationType](o, TagRelationType, p, src)}, nil
}

func (r *RelationTypes) GetByAlias(ctx context.Context, sc *scope.Scope, alias string) (*RelationType, bool, error) {
	return first(ctx, sc, r.CachedRepository, where("alias = ?", alias))
}

func (r *RelationTypes) GetByKey(ctx context.Context, sc *scope.Scope, key uuid.UUID) (*RelationType, bool, error) {
	return first(ctx, sc, r.CachedRepository, where("uid = ?", key.String()))
}
