// Package singleton guarantees that at most one process consumes updates for
// a bot token. The lock identity is derived from the token, so deployments of
// the same bot contend for one lock and different bots never collide.
package singleton

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/twmb/murmur3"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
)

const namespace = "groupkeeper:instance:"

// ErrLost reports that a held lock was taken away.
var ErrLost = fmt.Errorf("%w: lock lost", apperr.ErrLockNotAcquired)

// LockKey is the 64-bit advisory lock key for token.
func LockKey(token string) int64 {
	return int64(murmur3.Sum64([]byte(namespace + token)))
}

// LockName is the textual lock name for token. The token itself never
// appears in it.
func LockName(token string) string {
	h1, h2 := murmur3.Sum128([]byte(namespace + token))
	var b [16]byte
	for i := range 8 {
		b[i] = byte(h1 >> (56 - 8*i))
		b[8+i] = byte(h2 >> (56 - 8*i))
	}
	return namespace + hex.EncodeToString(b[:])
}

// Locker is one backend of the instance lock.
type Locker interface {
	// TryLock reports whether the lock was obtained. It never waits.
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	// Lost is closed if a held lock is taken away.
	Lost() <-chan struct{}
}

// Acquire takes the lock or fails with apperr.ErrLockNotAcquired.
func Acquire(ctx context.Context, l Locker) error {
	ok, err := l.TryLock(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrLockNotAcquired, err)
	}
	if !ok {
		return fmt.Errorf("%w: held by another process", apperr.ErrLockNotAcquired)
	}
	return nil
}
