package scope

import "context"

// Tx is a transaction begun on behalf of a root scope.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Transactor begins transactions. The scope package only reacts to the
// scope lifecycle; it never talks to a database itself.
type Transactor interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// WithTransaction begins a root scope, runs fn and disposes the scope.
// The scope is completed only when fn returns nil, so any error rolls back.
func WithTransaction(ctx context.Context, p *Provider, fn func(ctx context.Context, sc *Scope) error, opts ...Option) (err error) {
	sc, err := p.Begin(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if derr := sc.Dispose(ctx); err == nil {
			err = derr
		}
	}()

	if err = fn(NewContext(ctx, sc), sc); err != nil {
		return err
	}
	sc.Complete()
	return nil
}
