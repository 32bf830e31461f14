package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/repositorycache"
	"github.com/goliatone/go-scopecache/scope"
)

// DictionaryItems caches items one by one and never the full set.
type DictionaryItems struct {
	*repositorycache.CachedRepository[int, *DictionaryItem]
}

func NewDictionaryItems(o Options) (*DictionaryItems, error) {
	src := source(o, func() *DictionaryItem { return &DictionaryItem{} })
	p, err := policy.NewSingleItemsOnly(policyOptions(o, TagDictionaryItem, dictionaryItemID, src))
	if err != nil {
		return nil, err
	}
	return &DictionaryItems{CachedRepository: facade[*DictionaryItem](o, TagDictionaryItem, p, src)}, nil
}

// GetByItemKey finds an item by its translation key.
func (r *DictionaryItems) GetByItemKey(ctx context.Context, sc *scope.Scope, itemKey string) (*DictionaryItem, bool, error) {
	return first(ctx, sc, r.CachedRepository, where("item_key = ?", itemKey))
}

// GetChildren returns the direct children of parent ordered by item key.
// uuid.Nil lists the root items.
func (r *DictionaryItems) GetChildren(ctx context.Context, sc *scope.Scope, parent uuid.UUID) ([]*DictionaryItem, error) {
	return r.GetByQuery(ctx, sc, func(q *bun.SelectQuery) *bun.SelectQuery {
		if parent == uuid.Nil {
			q = q.Where("parent_uid IS NULL")
		} else {
			q = q.Where("parent_uid = ?", parent.String())
		}
		return q.Order("item_key ASC")
	})
}
