package cache

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// 通过 SetNX 实现的分布式锁，server 与 worker 共享同一个 Redis
const (
	lockPrefix = "lock"
)

type Locker struct {
	rdb   goredis.Cmdable
	keyFn func(parts ...string) string
}

func NewLocker(rdb goredis.Cmdable, keyFn func(parts ...string) string) *Locker {
	return &Locker{rdb: rdb, keyFn: keyFn}
}

// TryLock 抢占锁，已被占用时返回 false
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, l.keyFn(lockPrefix, key), 1, ttl).Result()
}

func (l *Locker) Unlock(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.keyFn(lockPrefix, key)).Err()
}
