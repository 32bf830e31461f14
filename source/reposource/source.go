// Package reposource adapts a go-repository-bun Repository to the policy
// source and persister contracts, so existing repositories can sit behind a
// cache policy unchanged. Only the transactional (*Tx) methods are used; the
// transaction comes from the scope.
package reposource

import (
	"context"
	"fmt"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-scopecache/scope"
	"github.com/goliatone/go-scopecache/storage"
)

// DBFunc resolves the transaction handed to the repository.
type DBFunc func(ctx context.Context, sc *scope.Scope) (bun.IDB, error)

// Source wraps a Repository[T] keyed by K.
type Source[K comparable, T any] struct {
	repo   repository.Repository[T]
	column string
	db     DBFunc
}

// Option configures a Source.
type Option func(*options)

type options struct {
	column string
	db     DBFunc
}

// WithColumn sets the primary key column used in lookups. Defaults to "id".
func WithColumn(column string) Option {
	return func(o *options) {
		o.column = column
	}
}

// WithDB overrides how the transaction is resolved. Defaults to storage.IDB.
func WithDB(fn DBFunc) Option {
	return func(o *options) {
		o.db = fn
	}
}

// New wraps repo.
func New[K comparable, T any](repo repository.Repository[T], opts ...Option) *Source[K, T] {
	o := options{column: "id", db: storage.IDB}
	for _, opt := range opts {
		opt(&o)
	}
	return &Source[K, T]{repo: repo, column: o.column, db: o.db}
}

// Repository returns the wrapped repository.
func (s *Source[K, T]) Repository() repository.Repository[T] {
	return s.repo
}

func (s *Source[K, T]) byID(id K) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(s.column), id)
	}
}

func (s *Source[K, T]) byIDs(ids []K) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? IN (?)", bun.Ident(s.column), bun.In(ids))
	}
}

func (s *Source[K, T]) orderByID() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.? ASC", bun.Ident(s.column))
	}
}

// PerformGet lists by primary key rather than calling GetByIDTx, so a
// missing row is a plain miss instead of an error to classify.
func (s *Source[K, T]) PerformGet(ctx context.Context, sc *scope.Scope, id K) (T, bool, error) {
	var zero T
	db, err := s.db(ctx, sc)
	if err != nil {
		return zero, false, err
	}
	rows, _, err := s.repo.ListTx(ctx, db, s.byID(id))
	if err != nil {
		return zero, false, err
	}
	if len(rows) == 0 {
		return zero, false, nil
	}
	return rows[0], true, nil
}

func (s *Source[K, T]) PerformGetAll(ctx context.Context, sc *scope.Scope, ids []K) ([]T, error) {
	db, err := s.db(ctx, sc)
	if err != nil {
		return nil, err
	}
	criteria := []repository.SelectCriteria{s.orderByID()}
	if len(ids) > 0 {
		criteria = append(criteria, s.byIDs(ids))
	}
	rows, _, err := s.repo.ListTx(ctx, db, criteria...)
	return rows, err
}

func (s *Source[K, T]) PerformCount(ctx context.Context, sc *scope.Scope) (int, error) {
	db, err := s.db(ctx, sc)
	if err != nil {
		return 0, err
	}
	return s.repo.CountTx(ctx, db)
}

func (s *Source[K, T]) PerformExists(ctx context.Context, sc *scope.Scope, id K) (bool, error) {
	db, err := s.db(ctx, sc)
	if err != nil {
		return false, err
	}
	n, err := s.repo.CountTx(ctx, db, s.byID(id))
	return n > 0, err
}

// PerformQuery accepts a repository.SelectCriteria or a slice of them.
func (s *Source[K, T]) PerformQuery(ctx context.Context, sc *scope.Scope, q any) ([]T, error) {
	var criteria []repository.SelectCriteria
	switch c := q.(type) {
	case repository.SelectCriteria:
		criteria = []repository.SelectCriteria{c}
	case []repository.SelectCriteria:
		criteria = c
	default:
		return nil, fmt.Errorf("reposource: unsupported query %T", q)
	}

	db, err := s.db(ctx, sc)
	if err != nil {
		return nil, err
	}
	rows, _, err := s.repo.ListTx(ctx, db, criteria...)
	return rows, err
}

func (s *Source[K, T]) PersistNew(ctx context.Context, sc *scope.Scope, record T) error {
	db, err := s.db(ctx, sc)
	if err != nil {
		return err
	}
	_, err = s.repo.CreateTx(ctx, db, record)
	return err
}

func (s *Source[K, T]) PersistUpdated(ctx context.Context, sc *scope.Scope, record T) error {
	db, err := s.db(ctx, sc)
	if err != nil {
		return err
	}
	_, err = s.repo.UpdateTx(ctx, db, record)
	return err
}

func (s *Source[K, T]) PersistDeleted(ctx context.Context, sc *scope.Scope, record T) error {
	db, err := s.db(ctx, sc)
	if err != nil {
		return err
	}
	return s.repo.DeleteTx(ctx, db, record)
}
