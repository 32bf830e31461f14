package scope

import "context"

type ctxKey struct{}

// NewContext returns a context carrying sc as the ambient scope.
func NewContext(ctx context.Context, sc *Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, sc)
}

// FromContext returns the ambient scope, or nil.
func FromContext(ctx context.Context) *Scope {
	sc, _ := ctx.Value(ctxKey{}).(*Scope)
	return sc
}
