package policies

import (
	"context"
	"errors"
)

var ErrLockUnavailable = errors.New("policies: lock unavailable")

// PropertyLocker grants exclusive access to a key across service instances.
// Implementations either wait for ctx or fail fast with ErrLockUnavailable.
type PropertyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
