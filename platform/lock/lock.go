// Package lock provides keyed mutual exclusion for work that must not
// interleave across requests, such as replacing a user's profile picture.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the lock could not be taken before the wait
// budget or the context ran out.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires an exclusive lock on key. The returned release func must be
// called exactly once; it is safe to call after the TTL has expired.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
