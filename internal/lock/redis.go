package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	minPollInterval = 10 * time.Millisecond
	maxPollInterval = 250 * time.Millisecond
	releaseTimeout  = 5 * time.Second
)

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// RedisLocker shares one lock domain across processes through a Redis key.
// The key expires after ttl so a crashed holder cannot block writers forever.
type RedisLocker struct {
	client redisClient
	script *redis.Script
	key    string
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisLocker(client redisClient, key string, ttl time.Duration, log *zap.Logger) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("lock client not configured")
	}
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		key:    key,
		ttl:    ttl,
		log:    log.Named("lock.redis"),
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, timeout time.Duration) (func(), error) {
	deadline := time.Now().Add(timeout)
	wait := minPollInterval

	for {
		token, ok, err := l.tryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire ledger lock: %w", err)
		}
		if ok {
			return l.releaser(token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, domain.ErrLockTimeout
		}

		timer := time.NewTimer(min(wait, remaining))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		wait = min(wait*2, maxPollInterval)
	}
}

func (l *RedisLocker) tryLock(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) releaser(token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := l.script.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
				l.log.Warn("release ledger lock failed; key expires after ttl",
					zap.String("key", l.key),
					zap.Duration("ttl", l.ttl),
					zap.Error(err),
				)
			}
		})
	}
}
