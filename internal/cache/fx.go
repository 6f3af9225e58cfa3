package cache

import (
	"context"

	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(provideDedup),
)

func provideDedup(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) Dedup {
	if cfg.RedisAddr == "" {
		log.Info("redis not configured, using in-memory dedup")
		return NewMemoryDedup(clk)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedisDedup(client)
}
