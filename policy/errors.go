package policy

import goerrors "github.com/goliatone/go-errors"

// ErrUnsupportedOperation is returned by policies that deliberately do not
// implement an operation, and when the source lacks an optional contract.
var ErrUnsupportedOperation = goerrors.New("operation not supported by this cache policy", goerrors.CategoryOperation).
	WithTextCode("UNSUPPORTED_OPERATION")
