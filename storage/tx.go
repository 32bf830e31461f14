package storage

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-scopecache/scope"
)

// ErrForeignTx is returned by IDB when the scope's transaction was not
// begun by a storage Transactor.
var ErrForeignTx = goerrors.New("scope transaction is not a bun transaction", goerrors.CategoryOperation).
	WithTextCode("FOREIGN_TRANSACTION")

// Transactor begins bun transactions for root scopes.
type Transactor struct {
	db   *bun.DB
	opts *sql.TxOptions
}

// NewTransactor returns a Transactor over db. opts may be nil.
func NewTransactor(db *bun.DB, opts *sql.TxOptions) *Transactor {
	return &Transactor{db: db, opts: opts}
}

// BeginTx implements scope.Transactor. The transaction lives until the root
// scope is disposed, so it is detached from the cancellation of the call
// that happened to begin it.
func (t *Transactor) BeginTx(ctx context.Context) (scope.Tx, error) {
	tx, err := t.db.BeginTx(context.WithoutCancel(ctx), t.opts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx adapts bun.Tx to scope.Tx.
type Tx struct {
	tx bun.Tx
}

func (t *Tx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *Tx) Rollback(context.Context) error {
	return t.tx.Rollback()
}

// IDB returns the transaction as a query target.
func (t *Tx) IDB() bun.IDB {
	return t.tx
}

// IDB returns the transaction of sc's root scope, beginning it if needed.
func IDB(ctx context.Context, sc *scope.Scope) (bun.IDB, error) {
	if sc == nil {
		return nil, scope.ErrScopeRequired
	}
	tx, err := sc.Tx(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := tx.(*Tx)
	if !ok {
		return nil, ErrForeignTx
	}
	return t.tx, nil
}
