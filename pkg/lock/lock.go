// Package lock provides blocking mutual exclusion keyed by an arbitrary string,
// either within one process or across instances through Redis.
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Release gives the lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done. Distinct keys
	// never block each other.
	Acquire(ctx context.Context, key string) (Release, error)
}
