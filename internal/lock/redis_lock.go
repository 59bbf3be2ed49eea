package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another worker is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisLocker(rdb redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		slog.Info(err.Error())
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	return &redisLease{rdb: l.rdb, key: fullKey, token: token}, true, nil
}

type redisLease struct {
	rdb   redis.UniversalClient
	key   string
	token string
}

func (ls *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, ls.rdb, []string{ls.key}, ls.token, ttl.Milliseconds()).Int()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func (ls *redisLease) Release() {
	// The caller's context may already be done; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, ls.rdb, []string{ls.key}, ls.token).Err(); err != nil {
		slog.Error("failed to release lock", "key", ls.key, "error", err)
	}
}
