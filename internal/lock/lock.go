// Package lock serializes ledger mutations behind a single lock domain.
package lock

import (
	"context"
	"time"
)

// Locker grants exclusive access to the ledger. Acquire blocks until the lock
// is held, timeout elapses (domain.ErrLockTimeout) or ctx ends. The returned
// release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, timeout time.Duration) (release func(), err error)
}
