package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a previously acquired distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes session access across processes. The
// in-process session manager uses it in addition to its local locks when
// multiple replicas share one snapshot store.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired or ctx is cancelled.
	// The lock auto-expires after ttl if not released.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
