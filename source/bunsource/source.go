// Package bunsource implements policy sources and persisters on bun models.
// Every call runs in the transaction of the scope it is given.
package bunsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-scopecache/scope"
	"github.com/goliatone/go-scopecache/storage"
)

// DBFunc resolves the query target for a scope.
type DBFunc func(ctx context.Context, sc *scope.Scope) (bun.IDB, error)

// Query narrows a select built by PerformQuery.
type Query func(q *bun.SelectQuery) *bun.SelectQuery

// Source reads and writes one bun model. E is normally a pointer to the
// model struct.
type Source[K comparable, E any] struct {
	newModel func() E
	column   string
	db       DBFunc
}

// Option configures a Source.
type Option func(*options)

type options struct {
	column string
	db     DBFunc
}

// WithColumn sets the primary key column. Defaults to "id".
func WithColumn(column string) Option {
	return func(o *options) {
		o.column = column
	}
}

// WithDB overrides how the query target is resolved. Defaults to
// storage.IDB.
func WithDB(fn DBFunc) Option {
	return func(o *options) {
		o.db = fn
	}
}

// New returns a Source for the model created by newModel.
func New[K comparable, E any](newModel func() E, opts ...Option) *Source[K, E] {
	o := options{column: "id", db: storage.IDB}
	for _, opt := range opts {
		opt(&o)
	}
	return &Source[K, E]{newModel: newModel, column: o.column, db: o.db}
}

func (s *Source[K, E]) pk() bun.Ident {
	return bun.Ident(s.column)
}

func (s *Source[K, E]) PerformGet(ctx context.Context, sc *scope.Scope, id K) (E, bool, error) {
	var zero E
	db, err := s.db(ctx, sc)
	if err != nil {
		return zero, false, err
	}
	e := s.newModel()
	err = db.NewSelect().Model(e).Where("? = ?", s.pk(), id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return e, true, nil
}

// PerformGetAll selects the rows with the given ids, or the whole table
// ordered by primary key.
func (s *Source[K, E]) PerformGetAll(ctx context.Context, sc *scope.Scope, ids []K) ([]E, error) {
	db, err := s.db(ctx, sc)
	if err != nil {
		return nil, err
	}
	items := make([]E, 0, len(ids))
	q := db.NewSelect().Model(&items).OrderExpr("? ASC", s.pk())
	if len(ids) > 0 {
		q = q.Where("? IN (?)", s.pk(), bun.In(ids))
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return items, nil
}

func (s *Source[K, E]) PerformCount(ctx context.Context, sc *scope.Scope) (int, error) {
	db, err := s.db(ctx, sc)
	if err != nil {
		return 0, err
	}
	return db.NewSelect().Model(s.newModel()).Count(ctx)
}

func (s *Source[K, E]) PerformExists(ctx context.Context, sc *scope.Scope, id K) (bool, error) {
	db, err := s.db(ctx, sc)
	if err != nil {
		return false, err
	}
	return db.NewSelect().Model(s.newModel()).Where("? = ?", s.pk(), id).Exists(ctx)
}

// PerformQuery accepts a Query or a plain func(*bun.SelectQuery) *bun.SelectQuery.
func (s *Source[K, E]) PerformQuery(ctx context.Context, sc *scope.Scope, q any) ([]E, error) {
	var apply Query
	switch fn := q.(type) {
	case Query:
		apply = fn
	case func(*bun.SelectQuery) *bun.SelectQuery:
		apply = fn
	default:
		return nil, fmt.Errorf("bunsource: unsupported query %T", q)
	}

	db, err := s.db(ctx, sc)
	if err != nil {
		return nil, err
	}
	var items []E
	if err := apply(db.NewSelect().Model(&items)).Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return items, nil
}

func (s *Source[K, E]) PersistNew(ctx context.Context, sc *scope.Scope, e E) error {
	db, err := s.db(ctx, sc)
	if err != nil {
		return err
	}
	_, err = db.NewInsert().Model(e).Exec(ctx)
	return err
}

func (s *Source[K, E]) PersistUpdated(ctx context.Context, sc *scope.Scope, e E) error {
	db, err := s.db(ctx, sc)
	if err != nil {
		return err
	}
	_, err = db.NewUpdate().Model(e).WherePK().Exec(ctx)
	return err
}

// PersistDeleted deletes e by primary key. Deleting a missing row succeeds.
func (s *Source[K, E]) PersistDeleted(ctx context.Context, sc *scope.Scope, e E) error {
	db, err := s.db(ctx, sc)
	if err != nil {
		return err
	}
	_, err = db.NewDelete().Model(e).WherePK().Exec(ctx)
	return err
}
