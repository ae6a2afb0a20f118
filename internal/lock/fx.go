package lock

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/cemtrack/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ledger.lock",
	fx.Provide(NewLocker),
	fx.Provide(NewCoordinator),
)

// NewLocker builds the locker for the configured backend.
func NewLocker(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Locker, error) {
	lockCfg := cfg.Lock
	if lockCfg.Backend != config.LockBackendRedis {
		log.Info("using in-process ledger lock")
		return NewLocalLocker(), nil
	}
	if lockCfg.RedisAddr == "" {
		return nil, errors.New("lock redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     lockCfg.RedisAddr,
		Password: lockCfg.RedisPassword,
		DB:       lockCfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("using redis ledger lock",
		zap.String("addr", lockCfg.RedisAddr),
		zap.String("key", lockCfg.Key),
		zap.Duration("ttl", lockCfg.TTL),
	)
	return NewRedisLocker(client, lockCfg.Key, lockCfg.TTL, log)
}
