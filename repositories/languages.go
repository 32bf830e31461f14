package repositories

import (
	"context"
	"strings"

	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/repositorycache"
	"github.com/goliatone/go-scopecache/scope"
	"github.com/goliatone/go-scopecache/source/bunsource"
)

// Languages caches every language as one entry with an iso code index.
type Languages struct {
	*repositorycache.CachedRepository[int, *Language]

	set *policy.FullDataSetPolicy[int, *Language]
	src *bunsource.Source[int, *Language]
	db  bunsource.DBFunc
}

func NewLanguages(o Options) (*Languages, error) {
	src := source(o, func() *Language { return &Language{} })

	opts := policyOptions(o, TagLanguage, languageID, src)
	opts.IndexBy = func(l *Language) string { return strings.ToLower(l.IsoCode) }
	set, err := policy.NewFullDataSet(opts)
	if err != nil {
		return nil, err
	}

	r := &Languages{set: set, src: src, db: o.db()}
	r.CachedRepository = facade[*Language](o, TagLanguage, set, r)
	return r, nil
}

// GetByIsoCode finds a language by iso code, ignoring case.
func (r *Languages) GetByIsoCode(ctx context.Context, sc *scope.Scope, iso string) (*Language, bool, error) {
	id, ok, err := r.GetIDByIsoCode(ctx, sc, iso)
	if err != nil || !ok {
		return nil, false, err
	}
	return r.Get(ctx, sc, id)
}

func (r *Languages) GetIDByIsoCode(ctx context.Context, sc *scope.Scope, iso string) (int, bool, error) {
	return r.set.LookupID(ctx, sc, strings.ToLower(strings.TrimSpace(iso)))
}

func (r *Languages) GetIsoCodeByID(ctx context.Context, sc *scope.Scope, id int) (string, bool, error) {
	l, ok, err := r.Get(ctx, sc, id)
	if err != nil || !ok {
		return "", false, err
	}
	return l.IsoCode, true, nil
}

// GetDefault returns the default language, or the one with the lowest id
// when none is flagged.
func (r *Languages) GetDefault(ctx context.Context, sc *scope.Scope) (*Language, bool, error) {
	all, err := r.GetMany(ctx, sc)
	if err != nil || len(all) == 0 {
		return nil, false, err
	}
	fallback := all[0]
	for _, l := range all {
		if l.IsDefault {
			return l, true, nil
		}
		if l.ID < fallback.ID {
			fallback = l
		}
	}
	return fallback, true, nil
}

// PersistNew inserts l. A new default language takes the flag from the
// previous one.
func (r *Languages) PersistNew(ctx context.Context, sc *scope.Scope, l *Language) error {
	if err := r.src.PersistNew(ctx, sc, l); err != nil {
		return err
	}
	return r.claimDefault(ctx, sc, l)
}

func (r *Languages) PersistUpdated(ctx context.Context, sc *scope.Scope, l *Language) error {
	if err := r.src.PersistUpdated(ctx, sc, l); err != nil {
		return err
	}
	return r.claimDefault(ctx, sc, l)
}

func (r *Languages) PersistDeleted(ctx context.Context, sc *scope.Scope, l *Language) error {
	return r.src.PersistDeleted(ctx, sc, l)
}

func (r *Languages) claimDefault(ctx context.Context, sc *scope.Scope, l *Language) error {
	if !l.IsDefault {
		return nil
	}
	db, err := r.db(ctx, sc)
	if err != nil {
		return err
	}
	_, err = db.NewUpdate().
		Model((*Language)(nil)).
		Set("is_default = ?", false).
		Where("id <> ?", l.ID).
		Where("is_default = ?", true).
		Exec(ctx)
	return err
}
