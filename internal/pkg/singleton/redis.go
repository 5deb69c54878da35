package singleton

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLocker holds a leased key. A background loop renews the lease at a
// third of its TTL; if renewal finds the key gone or owned by someone else
// the lock counts as lost.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    *zap.Logger

	value    string
	stop     chan struct{}
	done     chan struct{}
	lost     chan struct{}
	lostOnce sync.Once
}

func NewRedisLocker(client *redis.Client, token string, ttl time.Duration, log *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		key:    LockName(token),
		ttl:    ttl,
		log:    log,
		lost:   make(chan struct{}),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context) (bool, error) {
	if l.value != "" {
		return false, errors.New("lease already held")
	}
	value := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to take lease: %w", err)
	}
	if !ok {
		return false, nil
	}
	l.value = value
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.keepAlive()
	return true, nil
}

func (l *RedisLocker) keepAlive() {
	defer close(l.done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				l.log.Warn("Failed to renew instance lease", zap.Error(err))
			case n == 0:
				l.log.Error("Instance lease lost", zap.String("key", l.key))
				l.lostOnce.Do(func() { close(l.lost) })
				return
			}
		}
	}
}

func (l *RedisLocker) Unlock(ctx context.Context) error {
	if l.value == "" {
		return nil
	}
	close(l.stop)
	<-l.done
	value := l.value
	l.value = ""
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, value).Err(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

func (l *RedisLocker) Lost() <-chan struct{} {
	return l.lost
}
