package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serialises version writes per document with SET NX PX.
type Locker struct {
	log       *logger.Logger
	rdb       goredis.Cmdable
	ttl       time.Duration
	wait      time.Duration
	retryStep time.Duration
}

func NewLocker(log *logger.Logger, rdb goredis.Cmdable, ttl, wait time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if wait < 0 {
		wait = 0
	}
	return &Locker{
		log:       log.With("service", "RedisLocker"),
		rdb:       rdb,
		ttl:       ttl,
		wait:      wait,
		retryStep: 100 * time.Millisecond,
	}
}

func lockKey(documentID string) string {
	return "docreview:lock:versions:" + documentID
}

// Lock blocks up to the configured wait for the document lock and returns its release func.
func (l *Locker) Lock(ctx context.Context, documentID string) (func(), error) {
	key := lockKey(documentID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("redis lock %s: %w", key, ErrLockNotAcquired)
		}
		t := time.NewTimer(l.retryStep)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	release := func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			l.log.Warn("redis unlock failed", "key", key, "error", err)
		}
	}
	return release, nil
}
