package scope

import goerrors "github.com/goliatone/go-errors"

var (
	// ErrScopeRequired is returned when a repository call is made without
	// an ambient scope.
	ErrScopeRequired = newError("a scope is required for repository access", goerrors.CategoryOperation, "SCOPE_REQUIRED")

	// ErrScopeDisposed is returned when a disposed scope is used.
	ErrScopeDisposed = newError("scope has been disposed", goerrors.CategoryOperation, "SCOPE_DISPOSED")

	// ErrChildScopeActive is returned when disposing a scope that still has
	// live children.
	ErrChildScopeActive = newError("scope has active child scopes", goerrors.CategoryOperation, "CHILD_SCOPE_ACTIVE")

	// ErrInvalidCacheMode is returned when a child scope asks for a lower
	// cache mode than its parent.
	ErrInvalidCacheMode = newError("child scope cache mode is lower than its parent", goerrors.CategoryValidation, "INVALID_CACHE_MODE")

	// ErrNoTransactor is returned by Scope.Tx when the provider was built
	// without a Transactor.
	ErrNoTransactor = newError("scope provider has no transactor", goerrors.CategoryOperation, "NO_TRANSACTOR")
)

func newError(msg string, category goerrors.Category, code string) *goerrors.Error {
	return goerrors.New(msg, category).WithTextCode(code)
}
