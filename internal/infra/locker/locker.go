// Package locker serializes coordination operations per payment instruction.
// The engine performs no locking itself; the service layer acquires an
// instruction-keyed lock around each load-operate-save cycle.
package locker

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld indicates the lock is currently held by another owner.
var ErrLockHeld = errors.New("lock held")

// Locker provides mutual exclusion keyed by instruction id.
type Locker interface {
	// Acquire takes the lock for key, returning a release function. It
	// fails with ErrLockHeld when the lock cannot be obtained within the
	// context deadline.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

const (
	lockTTL       = 30 * time.Second
	retryInterval = 50 * time.Millisecond
)
