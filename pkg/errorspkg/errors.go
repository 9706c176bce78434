// Package errorspkg holds the errors shown to API clients in place of unexpected failures.
package errorspkg

import "errors"

// ErrInternal replaces every error the API does not map to a client status.
var ErrInternal = errors.New("internal error")
